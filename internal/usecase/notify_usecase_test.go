package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/court-watch/internal/entity"
	"github.com/user/court-watch/pkg/metrics"
)

func slotResult() entity.ScanResult {
	return entity.ScanResult{RunID: "run-1", Slots: []entity.SlotRecord{
		slot("駒場", "1月21日(水)", "A面", "15:00-16:00"),
	}}
}

func TestNotifySlotsSendsOnce(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewNotifier(mailer, nil, NotifyConfig{}, metrics.New(), nil)

	n.NotifySlots(context.Background(), slotResult())
	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0].Subject, "🎾")
	assert.Contains(t, mailer.sent[0].Body, "【駒場】")
}

func TestNotifySlotsDeduplicatesAcrossRuns(t *testing.T) {
	mailer := &fakeMailer{}
	store := newMemNotificationStore()
	n := NewNotifier(mailer, store, NotifyConfig{DedupTTL: 6 * time.Hour}, nil, nil)

	n.NotifySlots(context.Background(), slotResult())
	n.NotifySlots(context.Background(), slotResult())
	assert.Len(t, mailer.sent, 1)
	require.Len(t, store.keys, 1)
	for _, ttl := range store.keys {
		assert.Equal(t, 6*time.Hour, ttl)
	}

	changed := slotResult()
	changed.Slots = append(changed.Slots, slot("碑文谷", "1月22日(木)", "B面", "9:00-11:00"))
	n.NotifySlots(context.Background(), changed)
	assert.Len(t, mailer.sent, 2)
}

func TestNotifySlotsStoreFailureStillSends(t *testing.T) {
	mailer := &fakeMailer{}
	store := newMemNotificationStore()
	store.err = errors.New("redis down")
	n := NewNotifier(mailer, store, NotifyConfig{DedupTTL: time.Hour}, nil, nil)

	n.NotifySlots(context.Background(), slotResult())
	assert.Len(t, mailer.sent, 1)
}

func TestNotifySlotsMailErrorIsSwallowed(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("422 invalid from")}
	store := newMemNotificationStore()
	m := metrics.New()
	n := NewNotifier(mailer, store, NotifyConfig{DedupTTL: time.Hour}, m, nil)

	n.NotifySlots(context.Background(), slotResult())
	assert.Empty(t, store.keys, "a failed mail is not remembered as sent")
}

func TestNotifyWithoutMailer(t *testing.T) {
	n := NewNotifier(nil, nil, NotifyConfig{OnError: true, HeartbeatInterval: time.Hour}, nil, nil)
	n.NotifySlots(context.Background(), slotResult())
	n.NotifyFailure(context.Background(), "run-1", errors.New("boom"), "", nil)
}

func TestHeartbeat(t *testing.T) {
	mailer := &fakeMailer{}
	store := newMemNotificationStore()
	n := NewNotifier(mailer, store, NotifyConfig{HeartbeatInterval: 24 * time.Hour}, nil, nil)

	n.NotifySlots(context.Background(), entity.ScanResult{RunID: "run-1"})
	n.NotifySlots(context.Background(), entity.ScanResult{RunID: "run-2"})
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, entity.MessageHeartbeat, mailer.sent[0].Kind)
	assert.Equal(t, 24*time.Hour, store.keys[heartbeatKey])
}

func TestNoMailForEmptyResultByDefault(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewNotifier(mailer, nil, NotifyConfig{}, nil, nil)
	n.NotifySlots(context.Background(), entity.ScanResult{})
	assert.Empty(t, mailer.sent)
}

func TestNotifyFailureRespectsOnError(t *testing.T) {
	mailer := &fakeMailer{}
	err := errors.Join(entity.ErrHardBlock)

	NewNotifier(mailer, nil, NotifyConfig{}, nil, nil).NotifyFailure(context.Background(), "run-1", err, "", nil)
	assert.Empty(t, mailer.sent)

	NewNotifier(mailer, nil, NotifyConfig{OnError: true}, nil, nil).NotifyFailure(context.Background(), "run-1", err, "", nil)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "⚠️ court-watch failure: hard_block", mailer.sent[0].Subject)
}
