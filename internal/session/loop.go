package session

import (
	"context"
	"time"

	"clover/internal/engine"
)

type loopState int

const (
	stateIdle loopState = iota
	stateSampling
	stateEmitting
	stateStopped
)

func (s loopState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateSampling:
		return "sampling"
	case stateEmitting:
		return "emitting"
	case stateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// loop is the token-by-token generation state machine for one call.
type loop struct {
	backend engine.Backend
	ectx    engine.Context
	sampler engine.Sampler
	vocab   engine.Vocab
	cancel  *CancelFlag
	now     func() time.Time

	buf []byte
}

// LoopResult is what the generation loop produced.
type LoopResult struct {
	Text   []byte
	Tokens int
	Reason StopReason
	// Cursor is the next free position after the last fed-back token.
	Cursor engine.Pos
	Phase  Phase
	// Err is the decode failure behind StopDecodeError.
	Err error
}

// run samples up to maxNew tokens starting at position start. The cancel
// flag and ctx are polled before every sample. A token counts once its text
// has been emitted; a failing feed-back decode stops the loop and keeps the
// text produced so far.
func (l *loop) run(ctx context.Context, start engine.Pos, maxNew int, sink Sink) LoopResult {
	var (
		res   = LoopResult{Cursor: start}
		st    = stateIdle
		tok   engine.Token
		tr    *SpeedTracker
		batch engine.Batch
	)
	defer func() {
		if batch != nil {
			batch.Free()
		}
	}()
	for st != stateStopped {
		switch st {
		case stateIdle:
			tr = NewSpeedTracker(l.now)
			st = stateSampling
		case stateSampling:
			if res.Tokens >= maxNew {
				res.Reason = StopLimit
				st = stateStopped
				continue
			}
			if l.cancel.Stopped() || ctx.Err() != nil {
				res.Reason = StopCancelled
				st = stateStopped
				continue
			}
			tok = l.sampler.Sample(l.ectx, -1)
			l.sampler.Accept(tok)
			if l.vocab.IsEOG(tok) {
				res.Reason = StopEOS
				st = stateStopped
				continue
			}
			st = stateEmitting
		case stateEmitting:
			if piece := l.piece(tok); len(piece) > 0 {
				res.Text = append(res.Text, piece...)
				if sink != nil {
					sink.Accept(piece)
				}
			}
			res.Tokens++
			tr.Add(1)
			if batch == nil {
				batch = l.backend.NewBatch(1)
			}
			batch.Reset()
			batch.Add(tok, res.Cursor, 0, true)
			if err := l.ectx.Decode(batch); err != nil {
				res.Reason = StopDecodeError
				res.Err = err
				st = stateStopped
				continue
			}
			res.Cursor++
			st = stateSampling
		}
	}
	res.Phase = tr.Stop()
	return res
}

// piece converts tok to text, growing the scratch buffer once if the engine
// asks for more room.
func (l *loop) piece(tok engine.Token) []byte {
	if len(l.buf) < pieceBufSize {
		l.buf = make([]byte, pieceBufSize)
	}
	n := l.vocab.TokenToPiece(tok, l.buf)
	if n < 0 {
		l.buf = make([]byte, -n)
		n = l.vocab.TokenToPiece(tok, l.buf)
	}
	if n <= 0 {
		return nil
	}
	return l.buf[:n]
}
