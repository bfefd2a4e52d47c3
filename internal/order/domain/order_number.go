package domain

import (
	"crypto/rand"
	"fmt"
	"time"
)

const orderNumberCharset = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// NewOrderNumber builds a human-decodable order number: a date component
// plus a random suffix, e.g. ORD-250615-K4T7QX. Collisions are negligible
// but the commit pipeline still treats a uniqueness violation as retryable.
func NewOrderNumber(now time.Time) string {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand only fails if the OS entropy source is broken; fall
		// back to a time-derived suffix rather than panic mid-checkout.
		nanos := now.UnixNano()
		for i := range suffix {
			suffix[i] = orderNumberCharset[nanos%int64(len(orderNumberCharset))]
			nanos /= int64(len(orderNumberCharset))
		}
	} else {
		for i := range suffix {
			suffix[i] = orderNumberCharset[int(suffix[i])%len(orderNumberCharset)]
		}
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format("060102"), suffix)
}
