package ports

import (
	"multiverse/domain/frame"
)

// DatasetReader loads a tabular dataset into a frame. Adapters exist for
// xlsx/csv files and for the synthetic testkit generator.
type DatasetReader interface {
	Read() (*frame.Frame, error)
}
