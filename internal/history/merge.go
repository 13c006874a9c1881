package history

import (
	"slices"

	"github.com/medisync/realtime/internal/delivery"
	"github.com/medisync/realtime/internal/domain"
)

// Merge combines fetched history with the live messages. Each id appears once,
// at its earliest position, carrying the most advanced status seen for it.
// The result is ordered by CreatedAt; ties keep history before live.
func Merge(history, live []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(history)+len(live))
	index := make(map[string]int, len(history)+len(live))

	for _, src := range [][]domain.ChatMessage{history, live} {
		for _, m := range src {
			if i, ok := index[m.ID]; ok {
				if next, changed := delivery.Advance(out[i].Status, m.Status); changed {
					out[i].Status = next
				}
				continue
			}
			index[m.ID] = len(out)
			out = append(out, m.Clone())
		}
	}

	slices.SortStableFunc(out, func(a, b domain.ChatMessage) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}
