package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/user/court-watch/internal/entity"
)

const (
	slotsSubjectPrefix   = "🎾 テニスコート空きあり"
	failureSubjectPrefix = "⚠️ court-watch failure"
	heartbeatSubject     = "💤 court-watch: 空きなし"

	unknownDate = "日付不明"
)

// SlotsMessage groups slots by facility, then by date, in first-seen order.
func SlotsMessage(result entity.ScanResult) entity.Message {
	facilities := result.Facilities()
	subject := fmt.Sprintf("%s: %s (%d件)", slotsSubjectPrefix, strings.Join(facilities, "、"), len(result.Slots))

	var b strings.Builder
	for i, facility := range facilities {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "【%s】\n", facility)

		var dates []string
		byDate := make(map[string][]entity.SlotRecord)
		for _, s := range result.Slots {
			if s.Facility != facility {
				continue
			}
			d := s.Date
			if d == "" {
				d = unknownDate
			}
			if _, ok := byDate[d]; !ok {
				dates = append(dates, d)
			}
			byDate[d] = append(byDate[d], s)
		}
		for _, d := range dates {
			fmt.Fprintf(&b, "  %s\n", d)
			for _, s := range byDate[d] {
				fmt.Fprintf(&b, "    - %s\n", slotLine(s))
			}
		}
	}
	if result.ReachedURL != "" {
		fmt.Fprintf(&b, "\n%s\n", result.ReachedURL)
	}
	return entity.Message{Kind: entity.MessageSlots, Subject: subject, Body: b.String()}
}

func slotLine(s entity.SlotRecord) string {
	if s.Mode == entity.ModeRow {
		return s.RawLine + " (時間帯未確定)"
	}
	return strings.TrimSpace(s.Court + " " + s.Time)
}

// FailureMessage describes a failed run.
func FailureMessage(runID string, err error, reachedURL string, diagnostics map[string]string) entity.Message {
	kind := entity.ErrorKind(err)
	var b strings.Builder
	fmt.Fprintf(&b, "run: %s\n", runID)
	fmt.Fprintf(&b, "kind: %s\n", kind)
	fmt.Fprintf(&b, "error: %v\n", err)
	if reachedURL != "" {
		fmt.Fprintf(&b, "reached: %s\n", reachedURL)
	}
	for _, k := range sortedKeys(diagnostics) {
		fmt.Fprintf(&b, "%s: %s\n", k, diagnostics[k])
	}
	return entity.Message{
		Kind:    entity.MessageFailure,
		Subject: fmt.Sprintf("%s: %s", failureSubjectPrefix, kind),
		Body:    b.String(),
	}
}

// HeartbeatMessage tells the recipient the watcher is alive but found nothing.
func HeartbeatMessage(runID string, at time.Time) entity.Message {
	return entity.Message{
		Kind:    entity.MessageHeartbeat,
		Subject: heartbeatSubject,
		Body:    fmt.Sprintf("run %s finished at %s without open slots.\n", runID, at.Format(time.RFC3339)),
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
