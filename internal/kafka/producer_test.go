package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dino-runner/internal/domain"
)

func TestProducerPublishes(t *testing.T) {
	mp := mocks.NewAsyncProducer(t, NewSaramaConfig())
	mp.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		var s domain.ScoreSubmission
		if err := json.Unmarshal(val, &s); err != nil {
			return err
		}
		assert.Equal(t, "Rex", s.PlayerName)
		return nil
	})
	mp.ExpectInputAndFail(assert.AnError)

	p := NewProducerWith(mp, "dino-scores", slog.New(slog.NewTextHandler(io.Discard, nil)))
	score := 120.0
	ctx := context.Background()
	require.NoError(t, p.Publish(ctx, domain.ScoreSubmission{PlayerName: "Rex", Score: &score, SessionID: "session-1"}))
	require.NoError(t, p.Publish(ctx, domain.ScoreSubmission{PlayerName: "Blue", Score: &score, SessionID: "session-2"}))
	p.Close()

	sent, failed := p.Stats()
	assert.Equal(t, int64(1), sent)
	assert.Equal(t, int64(1), failed)
}
