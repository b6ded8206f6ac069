package sender

import (
	"github.com/Klingon-tech/octwallet/internal/log"
	"github.com/Klingon-tech/octwallet/pkg/tx"
)

func (s *Sender) recordQueued(t *tx.Transaction) string {
	rec := s.opts.Recorder
	if rec == nil {
		return ""
	}
	id, err := rec.Queue(t)
	if err != nil {
		log.Failure(log.Sender, err).Msg("Could not record transaction")
		return ""
	}
	return id
}

func (s *Sender) recordProcessing(id string) {
	if s.opts.Recorder == nil || id == "" {
		return
	}
	if err := s.opts.Recorder.Processing(id); err != nil {
		log.Failure(log.Sender, err).Str("id", id).Msg("Could not mark transaction processing")
	}
}

func (s *Sender) recordCancelled(id string) {
	if s.opts.Recorder == nil || id == "" {
		return
	}
	if err := s.opts.Recorder.Cancel(id); err != nil {
		log.Failure(log.Sender, err).Str("id", id).Msg("Could not cancel transaction")
	}
}

func (s *Sender) recordSubmitted(id, hash string) {
	if s.opts.Recorder == nil || id == "" {
		return
	}
	if err := s.opts.Recorder.Submitted(id, hash); err != nil {
		log.Failure(log.Sender, err).Str("id", id).Msg("Could not mark transaction submitted")
	}
}

func (s *Sender) recordFailed(id string, cause error) {
	if s.opts.Recorder == nil || id == "" {
		return
	}
	if err := s.opts.Recorder.Failed(id, cause); err != nil {
		log.Failure(log.Sender, err).Str("id", id).Msg("Could not mark transaction failed")
	}
}
