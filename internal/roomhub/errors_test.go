package roomhub_test

import (
	"errors"
	"fmt"
	"testing"

	"meethub/backend/internal/blacklist"
	"meethub/backend/internal/roomhub"
	"meethub/backend/internal/waitingroom"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"credential issuance", fmt.Errorf("%w: livekit down", waitingroom.ErrCredentialIssuance), roomhub.CodeMediaUnavailable},
		{"forced removal", blacklist.ErrForcedRemovalFailed, roomhub.CodeMediaUnavailable},
		{"store failure", errors.New("redis: connection refused"), roomhub.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, roomhub.ErrorCode(tt.err))
		})
	}
}
