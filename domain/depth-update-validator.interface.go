package domain

import "errors"

var (
	// A gap between the book cursor and the update. The book must be reloaded from a snapshot.
	ErrOrderBookUpdateIsOutOfSequence = errors.New("order book update is out of sequence")
	// should just skip them
	ErrOrderBookUpdateIsOutdated = errors.New("order book update is outdated")
	ErrUnexpectedUpdateKind      = errors.New("unexpected depth update kind")
)

type IDepthUpdateValidator interface {
	// if return nil, the update is valid
	IsValidUpd(update DepthUpdate, cursor SequenceCursor) error
}
