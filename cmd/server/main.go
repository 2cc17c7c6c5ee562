// cmd/server/main.go
package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/Nex2i/dripiq-sub007/internal/config"
	"github.com/Nex2i/dripiq-sub007/internal/db"
	"github.com/Nex2i/dripiq-sub007/internal/handler"
	"github.com/Nex2i/dripiq-sub007/internal/queue"
	"github.com/Nex2i/dripiq-sub007/internal/repository"
	"github.com/Nex2i/dripiq-sub007/internal/service"
	"github.com/Nex2i/dripiq-sub007/internal/webhook"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	conn, err := db.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	rawDeliveryRepo := &repository.RawDeliveryRepository{DB: conn}
	eventRepo := &repository.MessageEventRepository{DB: conn}
	outboundRepo := &repository.OutboundMessageRepository{DB: conn}
	contactCampaignRepo := &repository.ContactCampaignRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	contactRepo := &repository.ContactRepository{DB: conn}

	var q queue.Queue
	if cfg.AMQPURL != "" {
		amqpQueue, err := queue.NewAMQPQueue(cfg.AMQPURL)
		if err != nil {
			log.Fatal(err)
		}
		defer amqpQueue.Close()
		q = amqpQueue
	} else {
		// single-process mode: consume sends in-process, since nothing
		// else will drain the in-memory queue
		log.Println("⚠️ AMQP_URL not set, using in-memory queue with an in-process consumer")
		inMem := queue.NewInMemoryQueue()
		sender := &service.MessageSender{Outbound: outboundRepo}
		inMem.Subscribe(service.CampaignSendsTopic, func(payload any) error {
			job, ok := payload.(service.SendJob)
			if !ok {
				return fmt.Errorf("unexpected job payload type %T", payload)
			}
			return sender.Process(job)
		})
		q = inMem
	}

	executor := &service.PlanExecutor{
		ContactCampaigns: contactCampaignRepo,
		Outbound:         outboundRepo,
		Queue:            q,
	}

	webhookService := &service.WebhookService{
		RawDeliveries:    rawDeliveryRepo,
		Events:           eventRepo,
		Outbound:         outboundRepo,
		ContactCampaigns: contactCampaignRepo,
		Recorder: &service.EventRecorder{
			Events:       eventRepo,
			DedupEnabled: cfg.DedupEnabled,
		},
		Executor:        executor,
		ParallelEnabled: cfg.ParallelEnabled,
	}

	campaignService := &service.CampaignService{
		CampaignRepo:        campaignRepo,
		ContactRepo:         contactRepo,
		ContactCampaignRepo: contactCampaignRepo,
		OutboundRepo:        outboundRepo,
		Queue:               q,
	}

	webhookHandler := &handler.WebhookHandler{
		Verifier: webhook.NewVerifier(cfg.WebhookSecret, cfg.MaxTimestampAge),
		Service:  webhookService,
		Enabled:  cfg.WebhooksEnabled,
	}

	campaignHandler := &handler.CampaignHandler{
		Service: campaignService,
	}

	r := chi.NewRouter()

	// Webhook gateway
	r.Post("/webhooks/{provider}/events", webhookHandler.HandleProviderEvents)

	// Campaign routes
	r.Post("/campaigns", campaignHandler.CreateCampaign)
	r.Get("/campaigns", campaignHandler.ListCampaigns)
	r.Get("/campaigns/{id}", campaignHandler.GetCampaign)
	r.Post("/campaigns/{id}/enroll", campaignHandler.EnrollContacts)

	log.Println("🚀 Server running on :8080")
	log.Fatal(http.ListenAndServe(":8080", r))
}
