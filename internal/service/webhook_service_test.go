package service_test

import (
	"fmt"
	"sync"
	"testing"

	appErrors "github.com/Nex2i/dripiq-sub007/internal/errors"
	"github.com/Nex2i/dripiq-sub007/internal/model"
	"github.com/Nex2i/dripiq-sub007/internal/plan"
	"github.com/Nex2i/dripiq-sub007/internal/queue"
	"github.com/Nex2i/dripiq-sub007/internal/service"
	"github.com/Nex2i/dripiq-sub007/internal/webhook"
)

// --- Mock repositories ---

type mockRawDeliveryRepo struct {
	deliveries []*model.RawDelivery
	statuses   map[int]string
}

func newMockRawDeliveryRepo() *mockRawDeliveryRepo {
	return &mockRawDeliveryRepo{statuses: map[int]string{}}
}

func (m *mockRawDeliveryRepo) Create(d *model.RawDelivery) error {
	d.ID = len(m.deliveries) + 1
	m.deliveries = append(m.deliveries, d)
	return nil
}

func (m *mockRawDeliveryRepo) UpdateStatus(id int, status string) error {
	m.statuses[id] = status
	return nil
}

func (m *mockRawDeliveryRepo) GetByID(id int) (*model.RawDelivery, error) {
	for _, d := range m.deliveries {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, nil
}

type mockEventRepo struct {
	mu           sync.Mutex
	nextID       int
	events       []*model.MessageEvent
	findErr      error
	createErrFor map[string]error // keyed by provider event id
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{createErrFor: map[string]error{}}
}

func (m *mockEventRepo) Create(e *model.MessageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.createErrFor[e.ProviderEventID]; err != nil {
		return err
	}
	m.nextID++
	e.ID = m.nextID
	stored := *e
	m.events = append(m.events, &stored)
	return nil
}

func (m *mockEventRepo) FindByProviderEventID(tenantID, providerEventID string) (*model.MessageEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, e := range m.events {
		if e.TenantID == tenantID && e.ProviderEventID == providerEventID {
			return e, nil
		}
	}
	return nil, nil
}

func (m *mockEventRepo) ListByIDs(tenantID string, ids []int) ([]*model.MessageEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[int]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []*model.MessageEvent{}
	for _, e := range m.events {
		if e.TenantID == tenantID && want[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockOutboundRepo struct {
	nextID   int
	messages map[int]*model.OutboundMessage
}

func newMockOutboundRepo() *mockOutboundRepo {
	return &mockOutboundRepo{messages: map[int]*model.OutboundMessage{}}
}

func (m *mockOutboundRepo) Create(msg *model.OutboundMessage) error {
	m.nextID++
	msg.ID = m.nextID
	stored := *msg
	m.messages[msg.ID] = &stored
	return nil
}

func (m *mockOutboundRepo) GetByID(id int) (*model.OutboundMessage, error) {
	return m.messages[id], nil
}

func (m *mockOutboundRepo) GetByCampaignAndNode(contactCampaignID int, nodeID string) (*model.OutboundMessage, error) {
	for _, msg := range m.messages {
		if msg.ContactCampaignID == contactCampaignID && msg.NodeID == nodeID {
			return msg, nil
		}
	}
	return nil, nil
}

func (m *mockOutboundRepo) UpdateStatus(id int, status, lastError string) error {
	if msg, ok := m.messages[id]; ok {
		msg.Status = status
		msg.LastError = lastError
	}
	return nil
}

func (m *mockOutboundRepo) ListByIDs(tenantID string, ids []int) ([]*model.OutboundMessage, error) {
	out := []*model.OutboundMessage{}
	for _, id := range ids {
		if msg, ok := m.messages[id]; ok && msg.TenantID == tenantID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type mockContactCampaignRepo struct {
	nextID    int
	campaigns map[int]*model.ContactCampaign
	loseRace  bool
}

func newMockContactCampaignRepo() *mockContactCampaignRepo {
	return &mockContactCampaignRepo{campaigns: map[int]*model.ContactCampaign{}}
}

func (m *mockContactCampaignRepo) Create(cc *model.ContactCampaign) error {
	m.nextID++
	cc.ID = m.nextID
	stored := *cc
	m.campaigns[cc.ID] = &stored
	return nil
}

func (m *mockContactCampaignRepo) GetByID(id int) (*model.ContactCampaign, error) {
	return m.campaigns[id], nil
}

func (m *mockContactCampaignRepo) GetByCampaignAndContact(campaignID, contactID int) (*model.ContactCampaign, error) {
	for _, cc := range m.campaigns {
		if cc.CampaignID == campaignID && cc.ContactID == contactID {
			return cc, nil
		}
	}
	return nil, nil
}

func (m *mockContactCampaignRepo) ListByIDs(tenantID string, ids []int) ([]*model.ContactCampaign, error) {
	out := []*model.ContactCampaign{}
	for _, id := range ids {
		if cc, ok := m.campaigns[id]; ok && cc.TenantID == tenantID {
			out = append(out, cc)
		}
	}
	return out, nil
}

func (m *mockContactCampaignRepo) AdvanceNode(id int, fromNodeID, toNodeID string) (bool, error) {
	if m.loseRace {
		return false, nil
	}
	cc, ok := m.campaigns[id]
	if !ok || cc.Status != model.ContactCampaignActive || cc.CurrentNodeID == nil || *cc.CurrentNodeID != fromNodeID {
		return false, nil
	}
	node := toNodeID
	cc.CurrentNodeID = &node
	return true, nil
}

func (m *mockContactCampaignRepo) Stop(id int, fromNodeID string) (bool, error) {
	cc, ok := m.campaigns[id]
	if !ok || cc.Status != model.ContactCampaignActive || cc.CurrentNodeID == nil || *cc.CurrentNodeID != fromNodeID {
		return false, nil
	}
	cc.Status = model.ContactCampaignStopped
	cc.CurrentNodeID = nil
	return true, nil
}

type publishedJob struct {
	topic   string
	payload any
}

type mockQueue struct {
	mu        sync.Mutex
	published []publishedJob
}

func (m *mockQueue) Publish(topic string, payload any, opts queue.PublishOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedJob{topic: topic, payload: payload})
	return nil
}

func (m *mockQueue) Subscribe(topic string, handler func(payload any) error) error {
	return nil
}

// --- Fixtures ---

func testPlan() plan.Plan {
	return plan.Plan{
		StartNodeID: "step-1",
		Nodes: []plan.Node{
			{ID: "step-1", Type: plan.NodeSend, Edges: []plan.Edge{
				{On: "opened", To: "step-2"},
				{On: "bounced", To: plan.StopTarget},
			}},
			{ID: "step-2", Type: plan.NodeSend, Edges: []plan.Edge{
				{On: "clicked", To: "step-3"},
			}},
			{ID: "step-3", Type: plan.NodeWait},
		},
	}
}

type fixture struct {
	svc              *service.WebhookService
	rawDeliveries    *mockRawDeliveryRepo
	events           *mockEventRepo
	outbound         *mockOutboundRepo
	contactCampaigns *mockContactCampaignRepo
	queue            *mockQueue
}

func newFixture() *fixture {
	f := &fixture{
		rawDeliveries:    newMockRawDeliveryRepo(),
		events:           newMockEventRepo(),
		outbound:         newMockOutboundRepo(),
		contactCampaigns: newMockContactCampaignRepo(),
		queue:            &mockQueue{},
	}
	f.svc = &service.WebhookService{
		RawDeliveries:    f.rawDeliveries,
		Events:           f.events,
		Outbound:         f.outbound,
		ContactCampaigns: f.contactCampaigns,
		Recorder:         &service.EventRecorder{Events: f.events, DedupEnabled: true},
		Executor: &service.PlanExecutor{
			ContactCampaigns: f.contactCampaigns,
			Outbound:         f.outbound,
			Queue:            f.queue,
		},
	}
	return f
}

func makeEvent(id string, eventType webhook.EventType) webhook.ValidatedEvent {
	return webhook.ValidatedEvent{
		Type:            eventType,
		Email:           "a@b.com",
		TenantID:        "t1",
		ProviderEventID: id,
	}
}

// --- Tests ---

func TestProcessWebhookRejectsMissingTenant(t *testing.T) {
	f := newFixture()
	ev := makeEvent("e1", webhook.EventDelivered)
	ev.TenantID = ""

	_, err := f.svc.ProcessWebhook("acme", "sig", []byte("[]"), []webhook.ValidatedEvent{ev})
	if err != appErrors.ErrMissingTenantID {
		t.Fatalf("expected ErrMissingTenantID, got %v", err)
	}
	if len(f.rawDeliveries.deliveries) != 0 {
		t.Fatal("archive write must not happen before tenant resolution")
	}
}

func TestProcessWebhookIdempotency(t *testing.T) {
	f := newFixture()
	events := []webhook.ValidatedEvent{
		makeEvent("e1", webhook.EventDelivered),
		makeEvent("e2", webhook.EventOpened),
	}

	first, err := f.svc.ProcessWebhook("acme", "sig", []byte("[]"), events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.SuccessfulEvents != 2 || first.SkippedEvents != 0 || first.FailedEvents != 0 {
		t.Fatalf("first call: got %+v", first)
	}

	second, err := f.svc.ProcessWebhook("acme", "sig", []byte("[]"), events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.SuccessfulEvents != 0 || second.SkippedEvents != 2 {
		t.Fatalf("second call should dedup everything: got %+v", second)
	}
	if !second.Success {
		t.Fatal("an all-duplicate batch is still a success")
	}
}

func TestProcessWebhookPartialFailure(t *testing.T) {
	f := newFixture()
	f.events.createErrFor["e2"] = fmt.Errorf("storage down")

	result, err := f.svc.ProcessWebhook("acme", "sig", []byte("[]"), []webhook.ValidatedEvent{
		makeEvent("e1", webhook.EventDelivered),
		makeEvent("e2", webhook.EventOpened),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SuccessfulEvents != 1 || result.FailedEvents != 1 || result.SkippedEvents != 0 {
		t.Fatalf("got %+v", result)
	}
	if result.Success {
		t.Fatal("a batch with failures is not a success")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error entry, got %v", result.Errors)
	}
	if f.rawDeliveries.statuses[result.WebhookDeliveryID] != model.DeliveryPartialFailure {
		t.Fatalf("delivery status = %q, want partial_failure", f.rawDeliveries.statuses[result.WebhookDeliveryID])
	}
}

func TestProcessWebhookNonRecordableSkip(t *testing.T) {
	f := newFixture()

	result, err := f.svc.ProcessWebhook("acme", "sig", []byte("[]"), []webhook.ValidatedEvent{
		makeEvent("e1", webhook.EventDropped),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SkippedEvents != 1 || result.SuccessfulEvents != 0 {
		t.Fatalf("got %+v", result)
	}
	if len(f.events.events) != 0 {
		t.Fatal("non-recordable events must never be written")
	}
	if f.rawDeliveries.statuses[result.WebhookDeliveryID] != model.DeliveryProcessed {
		t.Fatal("skips do not degrade the delivery status")
	}
}

func TestProcessWebhookArchiveClassification(t *testing.T) {
	f := newFixture()

	singleBody := []byte(`[{"event":"bounced","email":"a@b.com","timestamp":1700000000,"outbound_message_id":42}]`)
	ev := makeEvent("e1", webhook.EventBounced)
	ev.OutboundMessageID = 42
	if _, err := f.svc.ProcessWebhook("acme", "sig-abc", singleBody, []webhook.ValidatedEvent{ev}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	single := f.rawDeliveries.deliveries[0]
	if single.EventType != "bounced" || single.MessageID != "42" {
		t.Fatalf("single-event archive got type=%q message=%q", single.EventType, single.MessageID)
	}
	if single.Signature != "sig-abc" {
		t.Fatalf("signature not archived: %q", single.Signature)
	}
	if string(single.Payload) != string(singleBody) {
		t.Fatalf("archive must hold the wire bytes verbatim, got %s", single.Payload)
	}

	if _, err := f.svc.ProcessWebhook("acme", "sig", []byte("[]"), []webhook.ValidatedEvent{
		makeEvent("e2", webhook.EventDelivered),
		makeEvent("e3", webhook.EventOpened),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	batch := f.rawDeliveries.deliveries[1]
	if batch.EventType != "batch" || batch.MessageID != "" {
		t.Fatalf("batch archive got type=%q message=%q", batch.EventType, batch.MessageID)
	}
}

func TestProcessWebhookParallelRecording(t *testing.T) {
	f := newFixture()
	f.svc.ParallelEnabled = true

	events := []webhook.ValidatedEvent{}
	for i := 0; i < 20; i++ {
		events = append(events, makeEvent(fmt.Sprintf("e%d", i), webhook.EventDelivered))
	}

	result, err := f.svc.ProcessWebhook("acme", "sig", []byte("[]"), events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SuccessfulEvents != 20 || result.FailedEvents != 0 {
		t.Fatalf("got %+v", result)
	}
}

func TestProcessWebhookBatchTransitions(t *testing.T) {
	f := newFixture()

	start := "step-1"
	cc := &model.ContactCampaign{
		TenantID:      "t1",
		CampaignID:    1,
		ContactID:     1,
		Status:        model.ContactCampaignActive,
		CurrentNodeID: &start,
		Plan:          testPlan(),
	}
	if err := f.contactCampaigns.Create(cc); err != nil {
		t.Fatal(err)
	}
	msg := &model.OutboundMessage{TenantID: "t1", ContactCampaignID: cc.ID, ContactID: 1, NodeID: "step-1", Status: "sent"}
	if err := f.outbound.Create(msg); err != nil {
		t.Fatal(err)
	}

	opened := makeEvent("e1", webhook.EventOpened)
	opened.OutboundMessageID = msg.ID
	// second event references a message sent outside any campaign; silent skip
	stray := makeEvent("e2", webhook.EventOpened)
	stray.OutboundMessageID = 9999

	result, err := f.svc.ProcessWebhook("acme", "sig", []byte("[]"), []webhook.ValidatedEvent{opened, stray})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SuccessfulEvents != 2 {
		t.Fatalf("both events should record: %+v", result)
	}

	after := f.contactCampaigns.campaigns[cc.ID]
	if after.CurrentNodeID == nil || *after.CurrentNodeID != "step-2" {
		t.Fatalf("campaign did not advance to step-2: %+v", after.CurrentNodeID)
	}

	// step-2 is a send node, so a next-step job must have been queued
	if len(f.queue.published) != 1 {
		t.Fatalf("expected 1 queued send, got %d", len(f.queue.published))
	}
	job, ok := f.queue.published[0].payload.(service.SendJob)
	if !ok {
		t.Fatalf("unexpected payload type %T", f.queue.published[0].payload)
	}
	next, _ := f.outbound.GetByID(job.OutboundMessageID)
	if next == nil || next.NodeID != "step-2" {
		t.Fatalf("queued message should be for step-2, got %+v", next)
	}
}

func TestProcessWebhookUnmatchedEventRecordsButDoesNotMove(t *testing.T) {
	f := newFixture()

	start := "step-2" // step-2 has no edge for "opened"
	cc := &model.ContactCampaign{
		TenantID: "t1", CampaignID: 1, ContactID: 1,
		Status: model.ContactCampaignActive, CurrentNodeID: &start, Plan: testPlan(),
	}
	f.contactCampaigns.Create(cc)
	msg := &model.OutboundMessage{TenantID: "t1", ContactCampaignID: cc.ID, ContactID: 1, NodeID: "step-2", Status: "sent"}
	f.outbound.Create(msg)

	ev := makeEvent("e1", webhook.EventOpened)
	ev.OutboundMessageID = msg.ID

	result, err := f.svc.ProcessWebhook("acme", "sig", []byte("[]"), []webhook.ValidatedEvent{ev})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SuccessfulEvents != 1 {
		t.Fatalf("event should still record: %+v", result)
	}
	after := f.contactCampaigns.campaigns[cc.ID]
	if after.CurrentNodeID == nil || *after.CurrentNodeID != "step-2" {
		t.Fatal("unmatched event must not move state")
	}
	if len(f.queue.published) != 0 {
		t.Fatal("no send should be queued")
	}
}
