package service

import (
	"errors"
	"log"
	"math/rand"

	"github.com/Nex2i/dripiq-sub007/internal/model"
	"github.com/Nex2i/dripiq-sub007/internal/repository"
)

// MessageSender executes one queued send job: load the outbound message,
// skip it if already sent, deliver, and record the result. It backs both the
// broker worker and the in-process consumer used when no broker is
// configured.
type MessageSender struct {
	Outbound repository.OutboundMessageRepositoryInterface

	// Deliver hands the message to the provider. Nil falls back to the
	// mock sender.
	Deliver func(msg *model.OutboundMessage) error
}

// Process handles one SendJob. A missing message is not retryable; a
// delivery failure is.
func (s *MessageSender) Process(job SendJob) error {
	msg, err := s.Outbound.GetByID(job.OutboundMessageID)
	if err != nil {
		return err
	}
	if msg == nil {
		log.Println("⚠️ Message not found for ID:", job.OutboundMessageID)
		return nil // no retry
	}
	if msg.Status == "sent" {
		return nil // already handled, duplicate delivery
	}

	deliver := s.Deliver
	if deliver == nil {
		deliver = mockDeliver
	}
	if err := deliver(msg); err != nil {
		_ = s.Outbound.UpdateStatus(msg.ID, "failed", err.Error())
		return err
	}

	if err := s.Outbound.UpdateStatus(msg.ID, "sent", ""); err != nil {
		return err
	}
	log.Println("✅ Message sent:", msg.ID)
	return nil
}

var errMockSendFailed = errors.New("mock send failed")

// TODO: replace mockDeliver with the real provider client once the
// sender-identity workflow lands. 90% success rate.
func mockDeliver(msg *model.OutboundMessage) error {
	if rand.Intn(100) < 90 {
		return nil
	}
	return errMockSendFailed
}
