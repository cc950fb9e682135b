package registration

// Bucket is the coarse availability label shown next to a league.
type Bucket string

const (
	BucketFull      Bucket = "full"
	BucketLow       Bucket = "low"
	BucketAvailable Bucket = "available"
)

// lowSpotsThreshold is the largest number of remaining spots still shown as "low".
const lowSpotsThreshold = 3

// Availability is the derived view of a league's remaining capacity.
type Availability struct {
	SpotsRemaining int
	Bucket         Bucket
}

// ComputeAvailability derives spots remaining and the display bucket.
// Negative inputs are treated as zero, and occupancy above capacity (a race at
// registration time) floors at zero spots rather than going negative.
func ComputeAvailability(capacity, occupancy int) Availability {
	capacity = max(capacity, 0)
	occupancy = max(occupancy, 0)

	spots := max(capacity-occupancy, 0)
	return Availability{SpotsRemaining: spots, Bucket: bucketFor(spots)}
}

func bucketFor(spots int) Bucket {
	switch {
	case spots == 0:
		return BucketFull
	case spots <= lowSpotsThreshold:
		return BucketLow
	default:
		return BucketAvailable
	}
}
