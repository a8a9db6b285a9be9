package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"meethub/backend/internal/config"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/webhook"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/rs/zerolog/log"
)

// EventEgressEnded is the webhook event carrying a terminal recording status.
const EventEgressEnded = "egress_ended"

// LiveKit implements Server and WebhookReceiver against a LiveKit deployment.
type LiveKit struct {
	rooms         *lksdk.RoomServiceClient
	egress        *lksdk.EgressClient
	keys          auth.KeyProvider
	apiKey        string
	apiSecret     string
	tokenTTL      time.Duration
	recordingPath string
}

func NewLiveKit(cfg config.LiveKitConfig) *LiveKit {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &LiveKit{
		rooms:         lksdk.NewRoomServiceClient(cfg.URL, cfg.APIKey, cfg.APISecret),
		egress:        lksdk.NewEgressClient(cfg.URL, cfg.APIKey, cfg.APISecret),
		keys:          auth.NewSimpleKeyProvider(cfg.APIKey, cfg.APISecret),
		apiKey:        cfg.APIKey,
		apiSecret:     cfg.APISecret,
		tokenTTL:      ttl,
		recordingPath: cfg.RecordingPath,
	}
}

func (l *LiveKit) CreateRoom(ctx context.Context, room string) error {
	if _, err := l.rooms.CreateRoom(ctx, &livekit.CreateRoomRequest{Name: room}); err != nil {
		return fmt.Errorf("livekit: create room %s: %w", room, err)
	}
	return nil
}

type tokenMetadata struct {
	Role    string `json:"role"`
	IsGuest bool   `json:"isGuest"`
}

func (l *LiveKit) IssueToken(req TokenRequest) (string, error) {
	meta, err := json.Marshal(tokenMetadata{Role: string(req.Role), IsGuest: req.IsGuest})
	if err != nil {
		return "", err
	}
	token := auth.NewAccessToken(l.apiKey, l.apiSecret)
	token.SetIdentity(req.Identity).
		SetName(req.Name).
		SetMetadata(string(meta)).
		SetValidFor(l.tokenTTL).
		SetVideoGrant(&auth.VideoGrant{RoomJoin: true, Room: req.Room})
	jwt, err := token.ToJWT()
	if err != nil {
		return "", fmt.Errorf("livekit: sign token for %s: %w", req.Identity, err)
	}
	return jwt, nil
}

func (l *LiveKit) RemoveParticipant(ctx context.Context, room, identity string) error {
	_, err := l.rooms.RemoveParticipant(ctx, &livekit.RoomParticipantIdentity{Room: room, Identity: identity})
	if err != nil {
		return fmt.Errorf("livekit: remove %s from %s: %w", identity, room, err)
	}
	return nil
}

func (l *LiveKit) StartRecording(ctx context.Context, room, layout string) (string, error) {
	info, err := l.egress.StartRoomCompositeEgress(ctx, &livekit.RoomCompositeEgressRequest{
		RoomName: room,
		Layout:   layout,
		FileOutputs: []*livekit.EncodedFileOutput{{
			FileType: livekit.EncodedFileType_MP4,
			Filepath: l.recordingPath,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("livekit: start recording of %s: %w", room, err)
	}
	log.Info().Str("module", "media").Str("room_id", room).Str("egress_id", info.EgressId).Msg("recording started")
	return info.EgressId, nil
}

func (l *LiveKit) StopRecording(ctx context.Context, egressID string) error {
	if _, err := l.egress.StopEgress(ctx, &livekit.StopEgressRequest{EgressId: egressID}); err != nil {
		return fmt.Errorf("livekit: stop recording %s: %w", egressID, err)
	}
	return nil
}

// Receive verifies the request signature and decodes the egress part of the event.
func (l *LiveKit) Receive(r *http.Request) (*EgressNotification, error) {
	event, err := webhook.ReceiveWebhookEvent(r, l.keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	n := &EgressNotification{Event: event.GetEvent()}
	info := event.GetEgressInfo()
	if info == nil {
		return n, nil
	}
	n.EgressID = info.GetEgressId()
	n.RoomName = info.GetRoomName()
	n.Completed = n.Event == EventEgressEnded && info.GetStatus() == livekit.EgressStatus_EGRESS_COMPLETE
	for _, f := range info.GetFileResults() {
		n.Files = append(n.Files, FileResult{
			Filename: f.GetFilename(),
			Location: f.GetLocation(),
			Size:     f.GetSize(),
			Duration: time.Duration(f.GetDuration()),
		})
	}
	return n, nil
}
