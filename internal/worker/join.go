package worker

import "github.com/notifyhub/suggestion-worker/internal/domain"

// Join lays out found records in the order of ids. An id the store did not
// return gets an empty record, which formats with the fallback name and
// address; duplicated ids repeat their record.
func Join(ids []domain.RecordID, found map[domain.RecordID]domain.Record) []domain.Record {
	out := make([]domain.Record, len(ids))
	for i, id := range ids {
		if rec, ok := found[id]; ok {
			out[i] = rec
		} else {
			out[i] = domain.Record{}
		}
	}
	return out
}
