package routine

import (
	"time"

	"github.com/google/uuid"
)

// instanceNamespace seeds version 5 UUIDs for materialized instances.
var instanceNamespace = uuid.MustParse("9f2c1d6a-3b74-4e1c-9a55-7d0c8e4f2b61")

// InstanceID derives the persistence identifier for an instance from its
// natural key. Two publishers materializing the same (template, stable, date)
// produce the same identifier, so the duplicate collides at the storage layer
// instead of racing past an existence check.
func InstanceID(templateID, stableID string, date time.Time) string {
	key := templateID + "/" + stableID + "/" + FormatDate(date)
	return uuid.NewSHA1(instanceNamespace, []byte(key)).String()
}
