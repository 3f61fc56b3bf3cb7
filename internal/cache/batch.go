package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// GetMultiple fetches several keys at once. Every requested key is present in
// the result; missing, failed or undecodable entries hold the zero value of T.
func GetMultiple[T any](ctx context.Context, s *Service, keys []string) (map[string]T, error) {
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return nil, err
		}
	}

	results := make(map[string]T, len(keys))
	if len(keys) == 0 {
		return results, nil
	}

	start := time.Now()

	if s.batch == nil {
		for _, key := range keys {
			var value T
			keyStart := time.Now()
			if s.lookup(ctx, key, &value) {
				s.observer.RecordHit(key, time.Since(keyStart))
			} else {
				s.observer.RecordMiss(key, time.Since(keyStart))
			}
			results[key] = value
		}
		return results, nil
	}

	values, keyErrors, err := s.batch.GetMany(ctx, keys)
	if err != nil {
		s.backendErrors.Add(1)
		s.logger.WithError(err).WithField("keys", len(keys)).Warn("Cache batch get failed, treating as misses")
		values = nil
	}
	elapsed := time.Since(start)

	for _, key := range keys {
		var value T
		found := false

		if keyErr, failed := keyErrors[key]; failed {
			s.backendErrors.Add(1)
			s.logger.WithError(keyErr).WithField("key", key).Warn("Cache get failed, treating as miss")
		} else if data, ok := values[key]; ok {
			found = s.decode(ctx, key, data, &value)
		}

		if found {
			s.hits.Add(1)
			s.observer.RecordHit(key, elapsed)
		} else {
			var zero T
			value = zero
			s.misses.Add(1)
			s.observer.RecordMiss(key, elapsed)
		}
		results[key] = value
	}

	s.logger.WithFields(logrus.Fields{
		"keys":     len(keys),
		"duration": elapsed,
	}).Debug("Cache batch get")

	return results, nil
}

// SetMultiple stores several values with one TTL. A zero ttl selects the default TTL.
func SetMultiple[T any](ctx context.Context, s *Service, items map[string]T, ttl time.Duration) error {
	payloads := make(map[string][]byte, len(items))
	for key, value := range items {
		if err := validateKey(key); err != nil {
			return err
		}
		data, err := encode(value)
		if err != nil {
			return err
		}
		payloads[key] = data
	}

	if len(payloads) == 0 {
		return nil
	}

	ttl = s.resolveTTL(ttl)

	if s.batch == nil {
		for key, data := range payloads {
			s.write(ctx, key, data, nil, ttl)
		}
		return nil
	}

	if err := s.batch.SetMany(ctx, payloads, ttl); err != nil {
		s.backendErrors.Add(1)
		s.logger.WithError(err).WithField("keys", len(payloads)).Warn("Cache batch set failed")
		return nil
	}
	s.sets.Add(int64(len(payloads)))

	return nil
}
