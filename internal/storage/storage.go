package storage

import (
	"errors"

	"ammQuote/internal/model"
)

// Sink receives TWAP samples from the watch loop.
type Sink interface {
	PutSampleBatch(samples []model.TWAPSample) error
}

// Multi fans a batch out to every sink and joins their errors.
type Multi []Sink

func (m Multi) PutSampleBatch(samples []model.TWAPSample) error {
	var errs []error
	for _, sink := range m {
		if err := sink.PutSampleBatch(samples); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
