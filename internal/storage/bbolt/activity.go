package bbolt

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"go.etcd.io/bbolt"

	"github.com/grixate/missioncontrol/internal/activity"
)

const activityPrefix = "act:"

func activityKey(id string) []byte {
	return []byte(activityPrefix + id)
}

// timeBound is the smallest key at or after t.
func timeBound(t time.Time) []byte {
	var id ulid.ULID
	_ = id.SetTime(ulid.Timestamp(t))
	return activityKey(id.String())
}

func (s *Store) AppendActivity(ctx context.Context, a activity.Activity) (activity.Activity, error) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	if a.ID == "" {
		a.ID = s.nextULID(a.Timestamp)
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return activity.Activity{}, err
	}
	err = s.runWrite(ctx, func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketActivities).Put(activityKey(a.ID), payload)
	})
	if err != nil {
		return activity.Activity{}, err
	}
	return a, nil
}

// ListActivities walks the log newest first. Records that fail to decode are
// skipped.
func (s *Store) ListActivities(_ context.Context, filter activity.Filter) ([]activity.Activity, error) {
	out := make([]activity.Activity, 0, 64)
	prefix := []byte(activityPrefix)
	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(bucketActivities).Cursor()
		var key, value []byte
		if filter.Until.IsZero() {
			key, value = cursor.Last()
		} else {
			// Position on the first key past Until, then step back.
			key, value = cursor.Seek(timeBound(filter.Until.Add(time.Millisecond)))
			if key == nil {
				key, value = cursor.Last()
			} else {
				key, value = cursor.Prev()
			}
		}
		var lower []byte
		if !filter.Since.IsZero() {
			lower = timeBound(filter.Since)
		}
		for ; key != nil && bytes.HasPrefix(key, prefix); key, value = cursor.Prev() {
			if lower != nil && bytes.Compare(key, lower) < 0 {
				break
			}
			var item activity.Activity
			if err := json.Unmarshal(value, &item); err != nil {
				continue
			}
			if !filter.Match(item) {
				continue
			}
			out = append(out, item)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
