package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"minimall/internal/models"
)

// dispatchBatchSize bounds outbound fan-out so the messaging gateway's rate
// limits are respected while network latency still overlaps.
const dispatchBatchSize = 10

// NotificationStore is implemented by repository.NotificationRepository.
type NotificationStore interface {
	Create(n *models.NotificationRecord) error
	GetByID(id uint) (*models.NotificationRecord, error)
	Update(n *models.NotificationRecord) error
}

// MessageGateway is implemented by wxmsg.Client.
type MessageGateway interface {
	SendSubscribeMessage(ctx context.Context, openid, templateID string, data map[string]string) error
}

type RecipientResult struct {
	OpenID         string `json:"openid"`
	NotificationID uint   `json:"notification_id"`
	OK             bool   `json:"ok"`
	Error          string `json:"error,omitempty"`
}

type BatchResult struct {
	SuccessCount int               `json:"success_count"`
	FailureCount int               `json:"failure_count"`
	Results      []RecipientResult `json:"results"`
}

type NotificationService struct {
	store     NotificationStore
	gateway   MessageGateway
	batchSize int
}

func NewNotificationService(store NotificationStore, gateway MessageGateway) *NotificationService {
	return &NotificationService{store: store, gateway: gateway, batchSize: dispatchBatchSize}
}

// DispatchBatch sends the same templated message to every recipient,
// processing them in fixed-size concurrent batches. Each send is independent:
// one failure never aborts the batch, and every attempt is persisted as a
// NotificationRecord before this returns.
func (s *NotificationService) DispatchBatch(ctx context.Context, openids []string, templateID string, data map[string]string) (*BatchResult, error) {
	payload, _ := json.Marshal(data)
	results := make([]RecipientResult, len(openids))

	for start := 0; start < len(openids); start += s.batchSize {
		end := start + s.batchSize
		if end > len(openids) {
			end = len(openids)
		}
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				openid := openids[i]
				sendErr := s.gateway.SendSubscribeMessage(ctx, openid, templateID, data)
				rec := &models.NotificationRecord{
					OpenID:     openid,
					TemplateID: templateID,
					Payload:    string(payload),
					MaxRetries: models.DefaultMaxRetries,
				}
				if sendErr != nil {
					rec.Status = models.NotificationFailed
					rec.LastError = sendErr.Error()
				} else {
					rec.Status = models.NotificationSent
				}
				if err := s.store.Create(rec); err != nil {
					log.Printf("[NOTIFY] persisting record for %s failed: %v", openid, err)
				}
				res := RecipientResult{OpenID: openid, NotificationID: rec.ID, OK: sendErr == nil}
				if sendErr != nil {
					res.Error = sendErr.Error()
				}
				results[i] = res
			}(i)
		}
		wg.Wait()
	}

	out := &BatchResult{Results: results}
	for _, r := range results {
		if r.OK {
			out.SuccessCount++
		} else {
			out.FailureCount++
		}
	}
	log.Printf("[NOTIFY] batch template=%s recipients=%d sent=%d failed=%d", templateID, len(openids), out.SuccessCount, out.FailureCount)
	return out, nil
}

// Retry re-sends one failed notification. The retry counter increments
// whether or not the send goes through, so a flapping recipient cannot retry
// forever.
func (s *NotificationService) Retry(ctx context.Context, notificationID uint) error {
	rec, err := s.store.GetByID(notificationID)
	if err != nil {
		return err
	}
	if rec.Status != models.NotificationFailed {
		return ErrInvalidState
	}
	if rec.RetryCount >= rec.MaxRetries {
		return ErrRetryExhausted
	}
	rec.RetryCount++

	var data map[string]string
	if rec.Payload != "" {
		if err := json.Unmarshal([]byte(rec.Payload), &data); err != nil {
			log.Printf("[NOTIFY] bad payload on record %d: %v", rec.ID, err)
		}
	}
	sendErr := s.gateway.SendSubscribeMessage(ctx, rec.OpenID, rec.TemplateID, data)
	if sendErr != nil {
		rec.Status = models.NotificationFailed
		rec.LastError = sendErr.Error()
	} else {
		rec.Status = models.NotificationSent
		rec.LastError = ""
	}
	if err := s.store.Update(rec); err != nil {
		return err
	}
	return sendErr
}
