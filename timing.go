package shmop

import "github.com/messagemedia/shmop/internal/registry"

// bucketFor maps a duration in milliseconds to one of six half-open
// histogram buckets.
func bucketFor(ms int64) int {
	switch {
	case ms < 1000:
		return 0
	case ms < 5000:
		return 1
	case ms < 10000:
		return 2
	case ms < 20000:
		return 3
	case ms < 40000:
		return 4
	default:
		return 5
	}
}

// Timing adds ms to "name.service_time", increments exactly one of
// "name.time_taken_0".."name.time_taken_5" per the bucket table, and
// increments "name.timings_count" by one. Read-only mode logs and
// no-ops, matching Set.
func (s *Store) Timing(name string, ms int64) bool {
	if ms < 0 {
		s.log.Warnf("shmop: timing %q: ms %d is negative, treating as 0", name, ms)
		ms = 0
	}

	serviceTimeName := registry.TimingFieldName(name, 0)
	bucketName := registry.TimingFieldName(name, 1+bucketFor(ms))
	countName := registry.TimingFieldName(name, 7)

	currentServiceTime, _ := s.Get(serviceTimeName)
	okService := s.Set(serviceTimeName, int64(currentServiceTime)+ms)

	currentBucket, _ := s.Get(bucketName)
	okBucket := s.Set(bucketName, int64(currentBucket)+1)

	currentCount, _ := s.Get(countName)
	okCount := s.Set(countName, int64(currentCount)+1)

	return okService && okBucket && okCount
}
