package consumer

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/growth/internal/events"
)

func framedMessage(topic, eventType string, schemaID int, payload string) kafka.Message {
	return kafka.Message{
		Topic: topic,
		Time:  time.Now().UTC(),
		Value: events.Frame(schemaID, []byte(payload)),
		Headers: []kafka.Header{
			{Key: events.HeaderEventType, Value: []byte(eventType)},
			{Key: events.HeaderSchemaSubject, Value: []byte(events.Subject(topic))},
		},
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := framedMessage(events.TopicOnboarding, events.TypeOnboardingCompleted, 42, `{"user_id":"user-1"}`)
	msg.Key = []byte("user-1")
	msg.Offset = 10

	reader := &stubReader{
		messages: []kafka.Message{msg},
		after:    contextCanceled,
	}
	handler := &stubHandler{}
	handled := triggerCounter.WithLabelValues(string(events.TriggerOnboarding), outcomeHandled)
	before := testutil.ToFloat64(handled)

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, events.TypeOnboardingCompleted, handler.last.EventType)
	require.Equal(t, "user-1", handler.last.Key)
	require.Equal(t, int64(10), handler.last.Offset)
	require.Equal(t, 42, handler.last.SchemaID)
	require.Equal(t, &events.Trigger{Kind: events.TriggerOnboarding, UserID: "user-1"}, handler.last.Trigger)
	require.InDelta(t, before+1, testutil.ToFloat64(handled), 0.0001)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{
		messages: []kafka.Message{framedMessage(events.TopicPain, events.TypePainReported, 99, `{"user_id":"user-2","severity":"mild"}`)},
		after:    contextCanceled,
	}
	handler := &stubHandler{err: errors.New("boom")}
	failed := triggerCounter.WithLabelValues(string(events.TriggerPain), outcomeFailed)
	before := testutil.ToFloat64(failed)

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
	require.InDelta(t, before+1, testutil.ToFloat64(failed), 0.0001)
}

func TestProcessorCommitsUnconsumedEventTypes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{
		messages: []kafka.Message{framedMessage(events.TopicOnboarding, "profile.updated", 1, `{"user_id":"user-3"}`)},
		after:    contextCanceled,
	}
	handler := &stubHandler{}
	ignored := triggerCounter.WithLabelValues(untyped, outcomeIgnored)
	before := testutil.ToFloat64(ignored)

	err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0))).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.InDelta(t, before+1, testutil.ToFloat64(ignored), 0.0001)
}

func TestProcessorCommitsUndecodableMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wrongSubject := framedMessage(events.TopicPain, events.TypePainReported, 1, `{"user_id":"u1"}`)
	wrongSubject.Headers[1].Value = []byte(events.Subject(events.TopicOnboarding))

	reader := &stubReader{
		messages: []kafka.Message{
			{Topic: events.TopicPain, Value: []byte{0, 1}},
			{Topic: events.TopicPain, Value: []byte{7, 0, 0, 0, 1, '{', '}'}, Headers: []kafka.Header{{Key: events.HeaderEventType, Value: []byte(events.TypePainReported)}}},
			{Topic: events.TopicPain, Value: events.Frame(1, []byte(`{}`))},
			framedMessage(events.TopicPain, events.TypePainReported, 1, `{"user_id":`),
			framedMessage(events.TopicPain, events.TypePainReported, 1, `{"user_id":" "}`),
			wrongSubject,
		},
		after: contextCanceled,
	}
	handler := &stubHandler{}
	decodeErrors := decodeErrorCounter.WithLabelValues(events.TopicPain)
	before := testutil.ToFloat64(decodeErrors)

	err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0))).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, handler.calls)
	require.Equal(t, 6, reader.commitCalls)
	require.InDelta(t, before+6, testutil.ToFloat64(decodeErrors), 0.0001)
}

func TestDecodeMessageAcceptsMissingSubjectHeader(t *testing.T) {
	msg := kafka.Message{
		Topic:   events.TopicMeasurements,
		Value:   events.Frame(5, []byte(`{"user_id":"u9","height_cm":171}`)),
		Headers: []kafka.Header{{Key: events.HeaderEventType, Value: []byte(events.TypeMeasurementRecorded)}},
	}
	decoded, err := decodeMessage(msg)
	require.NoError(t, err)
	require.Equal(t, 5, decoded.SchemaID)
	require.Equal(t, &events.Trigger{Kind: events.TriggerMeasurement, UserID: "u9"}, decoded.Trigger)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
