package kafka

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dino-runner/internal/config"
	"github.com/dino-runner/internal/domain"
)

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member-1" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, msg.Offset)
	s.mu.Unlock()
}

type fakeClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "dino-scores" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

type batchRecorder struct {
	mu      sync.Mutex
	batches [][]domain.ScoreSubmission
}

func (r *batchRecorder) SubmitScoreBatch(_ context.Context, b domain.BatchScoreSubmission) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b.Scores)
	return len(b.Scores), nil
}

func (r *batchRecorder) sizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.batches))
	for i, b := range r.batches {
		out[i] = len(b)
	}
	return out
}

func newHandler(rec ScoreHandler, size int, timeout time.Duration) *consumerGroupHandler {
	return &consumerGroupHandler{
		config:  &config.KafkaConfig{BatchSize: size, BatchTimeout: timeout},
		handler: rec,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		ready:   make(chan bool),
	}
}

func message(offset int64, value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Offset: offset, Value: []byte(value)}
}

func TestConsumeClaimBatchesBySize(t *testing.T) {
	rec := &batchRecorder{}
	h := newHandler(rec, 2, time.Hour)
	session := &fakeSession{ctx: context.Background()}
	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 8)}

	claim.msgs <- message(1, `{"player_name":"Rex","score":10,"session_id":"a"}`)
	claim.msgs <- message(2, `not json`)
	claim.msgs <- message(3, `{"player_name":"Blue","score":20,"session_id":"b"}`)
	claim.msgs <- message(4, `{"player_name":"Mo","score":-1,"session_id":"c"}`)
	claim.msgs <- message(5, `{"player_name":"Kit","score":30.5,"session_id":"d"}`)
	close(claim.msgs)

	require.NoError(t, h.ConsumeClaim(session, claim))

	assert.Equal(t, []int{2, 1}, rec.sizes())
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, session.marked)
	assert.Equal(t, "Kit", rec.batches[1][0].PlayerName)
}

func TestConsumeClaimFlushesOnTimeoutAndShutdown(t *testing.T) {
	rec := &batchRecorder{}
	h := newHandler(rec, 100, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	session := &fakeSession{ctx: ctx}
	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage)}

	done := make(chan error, 1)
	go func() { done <- h.ConsumeClaim(session, claim) }()

	claim.msgs <- message(1, `{"player_name":"Rex","score":10,"session_id":"a"}`)
	assert.Eventually(t, func() bool { return len(rec.sizes()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []int{1}, rec.sizes())
}

func TestSetupClosesReadyOnce(t *testing.T) {
	h := newHandler(&batchRecorder{}, 1, time.Second)
	require.NoError(t, h.Setup(nil))
	require.NoError(t, h.Setup(nil))
	_, open := <-h.ready
	assert.False(t, open)
}

func TestDecodeSubmission(t *testing.T) {
	s, err := DecodeSubmission([]byte(`{"player_name":" Rex ","score":12,"session_id":"session-1"}`))
	require.NoError(t, err)
	assert.Equal(t, " Rex ", s.PlayerName)
	require.NotNil(t, s.Score)
	assert.Equal(t, 12.0, *s.Score)

	_, err = DecodeSubmission([]byte(`{"player_name":"Rex","session_id":"session-1"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidScore)

	_, err = DecodeSubmission([]byte(`{"player_name":"Rex","score":"12","session_id":"s"}`))
	assert.Error(t, err)
}
