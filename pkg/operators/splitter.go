package operators

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/sandboxws/rowfilter/pkg/operator"
)

// Splitter evaluates its criteria and routes every row to one of two
// outputs. Matching rows are returned from ProcessBatch and the rest are
// sent on the secondary channel. With invert set the two outputs trade
// places.
type Splitter struct {
	filter
	secondary chan<- arrow.Record
}

// NewSplitter creates a Splitter.
func NewSplitter(cfg Config, invert bool) *Splitter {
	return &Splitter{filter: filter{cfg: cfg, keyCol: -1, invert: invert}}
}

func (s *Splitter) SetSecondary(out chan<- arrow.Record) { s.secondary = out }

func (s *Splitter) Open(ctx *operator.Context) error {
	return s.open(ctx)
}

func (s *Splitter) ProcessBatch(batch arrow.Record) ([]arrow.Record, error) {
	primary, secondary, err := s.split(batch, s.secondary != nil)
	if err != nil {
		return nil, err
	}
	s.send(secondary)
	return primary, nil
}

func (s *Splitter) Flush() ([]arrow.Record, error) {
	primary, secondary, err := s.drain(s.secondary != nil)
	if err != nil {
		return nil, err
	}
	s.send(secondary)
	return primary, nil
}

func (s *Splitter) send(recs []arrow.Record) {
	for i, rec := range recs {
		select {
		case s.secondary <- rec:
		case <-s.ctx.Done():
			release(recs[i:])
			return
		}
	}
}

func (s *Splitter) Close() error {
	s.close()
	return nil
}
