package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestSubject(t *testing.T) {
	tests := []struct {
		prefix, session string
		kind            Kind
		want            string
	}{
		{"nomadplan", "abc", KindPhase, "nomadplan.session.abc.phase"},
		{"", "abc", KindMessage, "nomadplan.session.abc.message"},
		{"trips.dev", "a.b*c>", KindIntent, "trips.dev.session.a_b_c_.intent"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Subject(tt.prefix, tt.session, tt.kind))
	}
}

func TestKind_IsValid(t *testing.T) {
	for _, k := range []Kind{KindPhase, KindIntent, KindItinerary, KindMessage} {
		assert.True(t, k.IsValid(), k.String())
	}
	assert.False(t, Kind("weather").IsValid())
}

func TestNew(t *testing.T) {
	ev, err := New("s1", KindPhase, map[string]string{"phase": "results"})
	require.NoError(t, err)
	assert.Equal(t, "s1", ev.SessionID)
	assert.JSONEq(t, `{"phase":"results"}`, string(ev.Data))
	assert.False(t, ev.Time.IsZero())

	ev, err = New("s1", KindPhase, nil)
	require.NoError(t, err)
	assert.Nil(t, ev.Data)

	_, err = New("s1", KindPhase, make(chan int))
	assert.Error(t, err)
}

func TestNATSPublisher_Publish(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn, WithSubjectPrefix("trips"))

	ev, err := New("session-1", KindItinerary, map[string]int{"days": 2})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "trips.session.session-1.itinerary", conn.subjects[0])

	var decoded Event
	require.NoError(t, json.Unmarshal(conn.payloads[0], &decoded))
	assert.Equal(t, KindItinerary, decoded.Kind)
	assert.JSONEq(t, `{"days":2}`, string(decoded.Data))
}

func TestNATSPublisher_Errors(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := NewNATSPublisher(conn)

	err := p.Publish(context.Background(), Event{SessionID: "s", Kind: KindPhase})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection closed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewNATSPublisher(&fakeConn{}).Publish(ctx, Event{SessionID: "s", Kind: KindPhase})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNATSPublisher_CloseBorrowedConn(t *testing.T) {
	assert.NoError(t, NewNATSPublisher(&fakeConn{}).Close())
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "nomadplan-test")
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	var p Publisher = &r
	require.NoError(t, p.Publish(context.Background(), Event{Kind: KindPhase}))
	require.NoError(t, p.Publish(context.Background(), Event{Kind: KindMessage}))

	assert.Equal(t, []Kind{KindPhase, KindMessage}, r.Kinds())
	assert.Len(t, r.Events(), 2)
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), Event{}))
}
