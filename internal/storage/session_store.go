package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"meethub/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// maxCASRetries bounds optimistic read-modify-write loops on a single key.
const maxCASRetries = 16

// SessionStore is the volatile, TTL-bounded per-room state. Every collection
// mutation is atomic per key: set semantics via HSETNX/ZADD NX, removals via
// MULTI, and read-modify-write via WATCH.
type SessionStore interface {
	// Roles
	SetRoleIfAbsent(ctx context.Context, roomID, userID string, role models.Role) (models.Role, error)
	SetRole(ctx context.Context, roomID, userID string, role models.Role) error
	GetRole(ctx context.Context, roomID, userID string) (models.Role, error)
	GetRoles(ctx context.Context, roomID string) (map[string]models.Role, error)

	// Permissions
	GetPermissions(ctx context.Context, roomID string) (models.PermissionMatrix, bool, error)
	InitPermissions(ctx context.Context, roomID string, matrix models.PermissionMatrix) error
	SetPermission(ctx context.Context, roomID string, role models.Role, perm models.Permission, value bool) error

	// Waiting room
	EnqueueGuest(ctx context.Context, roomID string, guest models.WaitingGuest) (bool, error)
	GetWaitingGuest(ctx context.Context, roomID, guestID string) (*models.WaitingGuest, error)
	ListWaitingGuests(ctx context.Context, roomID string) ([]models.WaitingGuest, error)
	RemoveWaitingGuest(ctx context.Context, roomID, guestID string) (bool, error)

	// Presentations
	StartPresentation(ctx context.Context, roomID string, p models.Presentation) (*models.Presentation, error)
	GetPresentation(ctx context.Context, roomID, presentationID string) (*models.Presentation, error)
	FindPresentationByAuthor(ctx context.Context, roomID, authorID string) (*models.Presentation, error)
	ListPresentations(ctx context.Context, roomID string) ([]models.Presentation, error)
	UpdatePresentation(ctx context.Context, roomID, presentationID string, fn func(*models.Presentation) error) (*models.Presentation, error)
	DeletePresentation(ctx context.Context, roomID, presentationID string) (bool, error)

	// Blacklist
	AddBlacklistEntry(ctx context.Context, roomID string, entry models.BlacklistEntry) (bool, error)
	RemoveBlacklistEntry(ctx context.Context, roomID, ip string) (bool, error)
	ListBlacklist(ctx context.Context, roomID string) ([]models.BlacklistEntry, error)
	IsBlacklisted(ctx context.Context, roomID, ip string) (bool, error)

	// Analytics
	AppendAnalyticsEvent(ctx context.Context, roomID string, ev models.AnalyticsEvent) error
	AnalyticsEvents(ctx context.Context, roomID string) ([]models.AnalyticsEvent, error)
	SetActive(ctx context.Context, roomID, userID string, since int64) error
	RemoveActive(ctx context.Context, roomID, userID string) error
	ActiveParticipants(ctx context.Context, roomID string) (map[string]int64, error)
	TakeAnalytics(ctx context.Context, roomID string) ([]models.AnalyticsEvent, map[string]int64, error)
	RestoreAnalytics(ctx context.Context, roomID string, events []models.AnalyticsEvent, active map[string]int64) error

	// Recording correlation
	SaveRecording(ctx context.Context, rs models.RecordingSession) error
	GetRecording(ctx context.Context, egressID string) (*models.RecordingSession, error)
	GetRecordingByUser(ctx context.Context, roomID, userID string) (*models.RecordingSession, error)
	ReleaseRecordingUser(ctx context.Context, roomID, userID, egressID string) error
	DeleteRecording(ctx context.Context, egressID string) error

	// Rate limiting
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// releaseUserScript deletes the user -> egress index entry only if it still points at
// the given egress, so a newer recording by the same user is not released.
var releaseUserScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
	return redis.call("HDEL", KEYS[1], ARGV[1])
end
return 0
`)

// RedisSessionStore implements SessionStore on top of go-redis.
type RedisSessionStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisSessionStore creates a store. An empty prefix defaults to "meet:" and a
// zero ttl to 24h.
func NewRedisSessionStore(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisSessionStore {
	if client == nil {
		panic("redis client cannot be nil for RedisSessionStore")
	}
	if keyPrefix == "" {
		keyPrefix = "meet:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessionStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// Client exposes the underlying client for pub/sub fan-out.
func (s *RedisSessionStore) Client() *redis.Client {
	return s.client
}

// KeyPrefix returns the prefix applied to every key and channel.
func (s *RedisSessionStore) KeyPrefix() string {
	return s.keyPrefix
}

// --- Key Generation Helpers ---

func (s *RedisSessionStore) roomKey(roomID, suffix string) string {
	return fmt.Sprintf("%sroom:%s:%s", s.keyPrefix, roomID, suffix)
}

func (s *RedisSessionStore) rolesKey(roomID string) string { return s.roomKey(roomID, "roles") }
func (s *RedisSessionStore) permissionsKey(roomID string) string {
	return s.roomKey(roomID, "permissions")
}
func (s *RedisSessionStore) waitingKey(roomID string) string { return s.roomKey(roomID, "waiting") }
func (s *RedisSessionStore) waitingDataKey(roomID string) string {
	return s.roomKey(roomID, "waiting:guests")
}
func (s *RedisSessionStore) presentationsKey(roomID string) string {
	return s.roomKey(roomID, "presentations")
}
func (s *RedisSessionStore) blacklistKey(roomID string) string { return s.roomKey(roomID, "blacklist") }
func (s *RedisSessionStore) analyticsKey(roomID string) string { return s.roomKey(roomID, "analytics") }
func (s *RedisSessionStore) activeKey(roomID string) string    { return s.roomKey(roomID, "active") }
func (s *RedisSessionStore) recordingsKey(roomID string) string {
	return s.roomKey(roomID, "recordings")
}

func (s *RedisSessionStore) recordingKey(egressID string) string {
	return fmt.Sprintf("%srecording:%s", s.keyPrefix, egressID)
}

func permissionField(role models.Role, perm models.Permission) string {
	return string(role) + ":" + string(perm)
}

// --- Roles ---

func (s *RedisSessionStore) SetRoleIfAbsent(ctx context.Context, roomID, userID string, role models.Role) (models.Role, error) {
	key := s.rolesKey(roomID)
	var current *redis.StringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, userID, string(role))
		current = pipe.HGet(ctx, key, userID)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("redis: set default role for %s in room %s: %w", userID, roomID, err)
	}
	return models.Role(current.Val()), nil
}

func (s *RedisSessionStore) SetRole(ctx context.Context, roomID, userID string, role models.Role) error {
	key := s.rolesKey(roomID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, userID, string(role))
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: set role for %s in room %s: %w", userID, roomID, err)
	}
	return nil
}

func (s *RedisSessionStore) GetRole(ctx context.Context, roomID, userID string) (models.Role, error) {
	role, err := s.client.HGet(ctx, s.rolesKey(roomID), userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: get role for %s in room %s: %w", userID, roomID, err)
	}
	return models.Role(role), nil
}

func (s *RedisSessionStore) GetRoles(ctx context.Context, roomID string) (map[string]models.Role, error) {
	raw, err := s.client.HGetAll(ctx, s.rolesKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get roles for room %s: %w", roomID, err)
	}
	roles := make(map[string]models.Role, len(raw))
	for userID, role := range raw {
		roles[userID] = models.Role(role)
	}
	return roles, nil
}

// --- Permissions ---

func (s *RedisSessionStore) GetPermissions(ctx context.Context, roomID string) (models.PermissionMatrix, bool, error) {
	raw, err := s.client.HGetAll(ctx, s.permissionsKey(roomID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis: get permissions for room %s: %w", roomID, err)
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	matrix := make(models.PermissionMatrix, len(models.Roles))
	for _, role := range models.Roles {
		matrix[role] = models.RolePermissions{}
	}
	for field, value := range raw {
		role, perm, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		row := matrix[models.Role(role)]
		row.Set(models.Permission(perm), value == "1")
		matrix[models.Role(role)] = row
	}
	return matrix, true, nil
}

// InitPermissions writes every cell with HSETNX so a concurrent first derivation
// never overwrites a live edit.
func (s *RedisSessionStore) InitPermissions(ctx context.Context, roomID string, matrix models.PermissionMatrix) error {
	key := s.permissionsKey(roomID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for role, row := range matrix {
			for _, perm := range models.Permissions {
				pipe.HSetNX(ctx, key, permissionField(role, perm), boolField(row.Get(perm)))
			}
		}
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: init permissions for room %s: %w", roomID, err)
	}
	return nil
}

func (s *RedisSessionStore) SetPermission(ctx context.Context, roomID string, role models.Role, perm models.Permission, value bool) error {
	key := s.permissionsKey(roomID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, permissionField(role, perm), boolField(value))
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: set permission %s/%s for room %s: %w", role, perm, roomID, err)
	}
	return nil
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// --- Waiting room ---

// EnqueueGuest adds the guest to the FIFO queue. It reports false if the guest is
// already queued, in which case the original position is kept.
func (s *RedisSessionStore) EnqueueGuest(ctx context.Context, roomID string, guest models.WaitingGuest) (bool, error) {
	data, err := json.Marshal(guest)
	if err != nil {
		return false, fmt.Errorf("redis: marshal waiting guest %s: %w", guest.GuestID, err)
	}
	queueKey, dataKey := s.waitingKey(roomID), s.waitingDataKey(roomID)
	var added *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.ZAddNX(ctx, queueKey, redis.Z{Score: float64(guest.RequestedAt), Member: guest.GuestID})
		pipe.HSetNX(ctx, dataKey, guest.GuestID, string(data))
		pipe.Expire(ctx, queueKey, s.ttl)
		pipe.Expire(ctx, dataKey, s.ttl)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis: enqueue guest %s in room %s: %w", guest.GuestID, roomID, err)
	}
	return added.Val() == 1, nil
}

func (s *RedisSessionStore) GetWaitingGuest(ctx context.Context, roomID, guestID string) (*models.WaitingGuest, error) {
	raw, err := s.client.HGet(ctx, s.waitingDataKey(roomID), guestID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get waiting guest %s in room %s: %w", guestID, roomID, err)
	}
	var guest models.WaitingGuest
	if err := json.Unmarshal([]byte(raw), &guest); err != nil {
		return nil, fmt.Errorf("redis: unmarshal waiting guest %s: %w", guestID, err)
	}
	return &guest, nil
}

// ListWaitingGuests returns the queue in request order.
func (s *RedisSessionStore) ListWaitingGuests(ctx context.Context, roomID string) ([]models.WaitingGuest, error) {
	ids, err := s.client.ZRange(ctx, s.waitingKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list waiting queue for room %s: %w", roomID, err)
	}
	guests := make([]models.WaitingGuest, 0, len(ids))
	if len(ids) == 0 {
		return guests, nil
	}
	values, err := s.client.HMGet(ctx, s.waitingDataKey(roomID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load waiting guests for room %s: %w", roomID, err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var guest models.WaitingGuest
		if err := json.Unmarshal([]byte(raw), &guest); err != nil {
			continue
		}
		guests = append(guests, guest)
	}
	return guests, nil
}

// RemoveWaitingGuest removes the guest atomically. Exactly one of several concurrent
// callers observes true.
func (s *RedisSessionStore) RemoveWaitingGuest(ctx context.Context, roomID, guestID string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, s.waitingKey(roomID), guestID)
		pipe.HDel(ctx, s.waitingDataKey(roomID), guestID)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis: remove waiting guest %s in room %s: %w", guestID, roomID, err)
	}
	return removed.Val() == 1, nil
}

// --- Presentations ---

// watch runs fn as an optimistic transaction on key, retrying when another client
// modified the key between read and write.
func (s *RedisSessionStore) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxCASRetries; i++ {
		err := s.client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

func decodePresentations(raw map[string]string) []models.Presentation {
	out := make([]models.Presentation, 0, len(raw))
	for _, v := range raw {
		var p models.Presentation
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt == out[j].StartedAt {
			return out[i].PresentationID < out[j].PresentationID
		}
		return out[i].StartedAt < out[j].StartedAt
	})
	return out
}

// StartPresentation stores p and, in the same transaction, removes any presentation
// by the same author. The removed presentation is returned.
func (s *RedisSessionStore) StartPresentation(ctx context.Context, roomID string, p models.Presentation) (*models.Presentation, error) {
	key := s.presentationsKey(roomID)
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("redis: marshal presentation %s: %w", p.PresentationID, err)
	}
	var previous *models.Presentation
	err = s.watch(ctx, key, func(tx *redis.Tx) error {
		previous = nil
		raw, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		for _, existing := range decodePresentations(raw) {
			if existing.AuthorID == p.AuthorID {
				found := existing
				previous = &found
				break
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if previous != nil {
				pipe.HDel(ctx, key, previous.PresentationID)
			}
			pipe.HSet(ctx, key, p.PresentationID, string(data))
			pipe.Expire(ctx, key, s.ttl)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("redis: start presentation %s in room %s: %w", p.PresentationID, roomID, err)
	}
	return previous, nil
}

func (s *RedisSessionStore) GetPresentation(ctx context.Context, roomID, presentationID string) (*models.Presentation, error) {
	raw, err := s.client.HGet(ctx, s.presentationsKey(roomID), presentationID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get presentation %s in room %s: %w", presentationID, roomID, err)
	}
	var p models.Presentation
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("redis: unmarshal presentation %s: %w", presentationID, err)
	}
	return &p, nil
}

func (s *RedisSessionStore) FindPresentationByAuthor(ctx context.Context, roomID, authorID string) (*models.Presentation, error) {
	list, err := s.ListPresentations(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].AuthorID == authorID {
			return &list[i], nil
		}
	}
	return nil, ErrNotFound
}

// ListPresentations returns active presentations ordered by start time.
func (s *RedisSessionStore) ListPresentations(ctx context.Context, roomID string) ([]models.Presentation, error) {
	raw, err := s.client.HGetAll(ctx, s.presentationsKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list presentations for room %s: %w", roomID, err)
	}
	return decodePresentations(raw), nil
}

// UpdatePresentation applies fn to the stored presentation inside an optimistic
// transaction. An error from fn aborts the update and is returned unwrapped.
func (s *RedisSessionStore) UpdatePresentation(ctx context.Context, roomID, presentationID string, fn func(*models.Presentation) error) (*models.Presentation, error) {
	key := s.presentationsKey(roomID)
	var updated models.Presentation
	var fnErr error
	err := s.watch(ctx, key, func(tx *redis.Tx) error {
		fnErr = nil
		raw, err := tx.HGet(ctx, key, presentationID).Result()
		if errors.Is(err, redis.Nil) {
			fnErr = ErrNotFound
			return nil
		}
		if err != nil {
			return err
		}
		var p models.Presentation
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return err
		}
		if err := fn(&p); err != nil {
			fnErr = err
			return nil
		}
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, presentationID, string(data))
			pipe.Expire(ctx, key, s.ttl)
			return nil
		})
		if err == nil {
			updated = p
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("redis: update presentation %s in room %s: %w", presentationID, roomID, err)
	}
	if fnErr != nil {
		return nil, fnErr
	}
	return &updated, nil
}

func (s *RedisSessionStore) DeletePresentation(ctx context.Context, roomID, presentationID string) (bool, error) {
	n, err := s.client.HDel(ctx, s.presentationsKey(roomID), presentationID).Result()
	if err != nil {
		return false, fmt.Errorf("redis: delete presentation %s in room %s: %w", presentationID, roomID, err)
	}
	return n == 1, nil
}

// --- Blacklist ---

// AddBlacklistEntry stores the entry unless the IP is already blocked.
func (s *RedisSessionStore) AddBlacklistEntry(ctx context.Context, roomID string, entry models.BlacklistEntry) (bool, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("redis: marshal blacklist entry %s: %w", entry.IP, err)
	}
	key := s.blacklistKey(roomID)
	var added *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.HSetNX(ctx, key, entry.IP, string(data))
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis: add blacklist entry %s in room %s: %w", entry.IP, roomID, err)
	}
	return added.Val(), nil
}

func (s *RedisSessionStore) RemoveBlacklistEntry(ctx context.Context, roomID, ip string) (bool, error) {
	n, err := s.client.HDel(ctx, s.blacklistKey(roomID), ip).Result()
	if err != nil {
		return false, fmt.Errorf("redis: remove blacklist entry %s in room %s: %w", ip, roomID, err)
	}
	return n == 1, nil
}

// ListBlacklist returns entries in the order they were added.
func (s *RedisSessionStore) ListBlacklist(ctx context.Context, roomID string) ([]models.BlacklistEntry, error) {
	raw, err := s.client.HGetAll(ctx, s.blacklistKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list blacklist for room %s: %w", roomID, err)
	}
	entries := make([]models.BlacklistEntry, 0, len(raw))
	for _, v := range raw {
		var entry models.BlacklistEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AddedAt == entries[j].AddedAt {
			return entries[i].IP < entries[j].IP
		}
		return entries[i].AddedAt < entries[j].AddedAt
	})
	return entries, nil
}

func (s *RedisSessionStore) IsBlacklisted(ctx context.Context, roomID, ip string) (bool, error) {
	ok, err := s.client.HExists(ctx, s.blacklistKey(roomID), ip).Result()
	if err != nil {
		return false, fmt.Errorf("redis: check blacklist %s in room %s: %w", ip, roomID, err)
	}
	return ok, nil
}

// --- Analytics ---

func (s *RedisSessionStore) AppendAnalyticsEvent(ctx context.Context, roomID string, ev models.AnalyticsEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis: marshal analytics event: %w", err)
	}
	key := s.analyticsKey(roomID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, string(data))
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: append analytics event for room %s: %w", roomID, err)
	}
	return nil
}

// AnalyticsEvents returns the log in append order.
func (s *RedisSessionStore) AnalyticsEvents(ctx context.Context, roomID string) ([]models.AnalyticsEvent, error) {
	raw, err := s.client.LRange(ctx, s.analyticsKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read analytics log for room %s: %w", roomID, err)
	}
	return decodeEvents(raw), nil
}

// SetActive marks the user present. An existing active-since timestamp is kept.
func (s *RedisSessionStore) SetActive(ctx context.Context, roomID, userID string, since int64) error {
	key := s.activeKey(roomID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, userID, strconv.FormatInt(since, 10))
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: set active %s in room %s: %w", userID, roomID, err)
	}
	return nil
}

func (s *RedisSessionStore) RemoveActive(ctx context.Context, roomID, userID string) error {
	if err := s.client.HDel(ctx, s.activeKey(roomID), userID).Err(); err != nil {
		return fmt.Errorf("redis: remove active %s in room %s: %w", userID, roomID, err)
	}
	return nil
}

func (s *RedisSessionStore) ActiveParticipants(ctx context.Context, roomID string) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, s.activeKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read active participants for room %s: %w", roomID, err)
	}
	return decodeActive(raw), nil
}

// TakeAnalytics atomically reads and removes the room's log and active set.
// Events appended afterwards start a fresh log.
func (s *RedisSessionStore) TakeAnalytics(ctx context.Context, roomID string) ([]models.AnalyticsEvent, map[string]int64, error) {
	logKey, activeKey := s.analyticsKey(roomID), s.activeKey(roomID)
	var rangeCmd *redis.StringSliceCmd
	var activeCmd *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rangeCmd = pipe.LRange(ctx, logKey, 0, -1)
		activeCmd = pipe.HGetAll(ctx, activeKey)
		pipe.Del(ctx, logKey, activeKey)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("redis: take analytics for room %s: %w", roomID, err)
	}
	return decodeEvents(rangeCmd.Val()), decodeActive(activeCmd.Val()), nil
}

// RestoreAnalytics puts a taken log back in front of anything appended since.
// Active entries written since are kept.
func (s *RedisSessionStore) RestoreAnalytics(ctx context.Context, roomID string, events []models.AnalyticsEvent, active map[string]int64) error {
	if len(events) == 0 && len(active) == 0 {
		return nil
	}
	logKey, activeKey := s.analyticsKey(roomID), s.activeKey(roomID)
	values := make([]any, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		data, err := json.Marshal(events[i])
		if err != nil {
			return fmt.Errorf("redis: marshal analytics event: %w", err)
		}
		values = append(values, string(data))
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(values) > 0 {
			pipe.LPush(ctx, logKey, values...)
			pipe.Expire(ctx, logKey, s.ttl)
		}
		for userID, since := range active {
			pipe.HSetNX(ctx, activeKey, userID, strconv.FormatInt(since, 10))
		}
		if len(active) > 0 {
			pipe.Expire(ctx, activeKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: restore analytics for room %s: %w", roomID, err)
	}
	return nil
}

func decodeEvents(raw []string) []models.AnalyticsEvent {
	events := make([]models.AnalyticsEvent, 0, len(raw))
	for _, v := range raw {
		var ev models.AnalyticsEvent
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events
}

func decodeActive(raw map[string]string) map[string]int64 {
	active := make(map[string]int64, len(raw))
	for userID, v := range raw {
		since, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		active[userID] = since
	}
	return active
}

// --- Recording correlation ---

func (s *RedisSessionStore) SaveRecording(ctx context.Context, rs models.RecordingSession) error {
	key, userKey := s.recordingKey(rs.EgressID), s.recordingsKey(rs.RoomID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			"room_id":    rs.RoomID,
			"user_id":    rs.UserID,
			"started_at": rs.StartedAt,
		})
		pipe.Expire(ctx, key, s.ttl)
		pipe.HSet(ctx, userKey, rs.UserID, rs.EgressID)
		pipe.Expire(ctx, userKey, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: save recording %s for room %s: %w", rs.EgressID, rs.RoomID, err)
	}
	return nil
}

func (s *RedisSessionStore) GetRecording(ctx context.Context, egressID string) (*models.RecordingSession, error) {
	raw, err := s.client.HGetAll(ctx, s.recordingKey(egressID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get recording %s: %w", egressID, err)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}
	startedAt, _ := strconv.ParseInt(raw["started_at"], 10, 64)
	return &models.RecordingSession{
		EgressID:  egressID,
		RoomID:    raw["room_id"],
		UserID:    raw["user_id"],
		StartedAt: startedAt,
	}, nil
}

func (s *RedisSessionStore) GetRecordingByUser(ctx context.Context, roomID, userID string) (*models.RecordingSession, error) {
	egressID, err := s.client.HGet(ctx, s.recordingsKey(roomID), userID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get recording of %s in room %s: %w", userID, roomID, err)
	}
	return s.GetRecording(ctx, egressID)
}

func (s *RedisSessionStore) ReleaseRecordingUser(ctx context.Context, roomID, userID, egressID string) error {
	if err := releaseUserScript.Run(ctx, s.client, []string{s.recordingsKey(roomID)}, userID, egressID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis: release recording %s of %s in room %s: %w", egressID, userID, roomID, err)
	}
	return nil
}

func (s *RedisSessionStore) DeleteRecording(ctx context.Context, egressID string) error {
	if err := s.client.Del(ctx, s.recordingKey(egressID)).Err(); err != nil {
		return fmt.Errorf("redis: delete recording %s: %w", egressID, err)
	}
	return nil
}

// --- Rate limiting ---

// CheckRateLimit increments the counter behind key and reports true once it exceeds limit
// within window.
func (s *RedisSessionStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := s.keyPrefix + "ratelimit:" + key
	count, err := s.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit check on key %s: %w", fullKey, err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, fullKey, window).Err(); err != nil {
			return false, fmt.Errorf("redis: set rate limit window on key %s: %w", fullKey, err)
		}
	}
	return count > int64(limit), nil
}
