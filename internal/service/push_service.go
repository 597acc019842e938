package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/panops/panorama-address-manager/internal/domain"
	"github.com/panops/panorama-address-manager/internal/export"
	"github.com/panops/panorama-address-manager/internal/panorama"
	"github.com/panops/panorama-address-manager/internal/storage"
)

// PushService renders the customer artifact and pushes the address
// objects to Panorama. Every push creates a version record; the stages
// run in strict sequence and the first failing stage is recorded on the
// version. No retries, no compensation.
type PushService struct {
	store       storage.Storage
	client      panorama.AddressClient
	deviceGroup string
	debounce    time.Duration
	autoPush    bool

	mu          sync.Mutex
	pushTimer   *time.Timer
	pushPending bool
}

// NewPushService creates a new PushService.
func NewPushService(store storage.Storage, client panorama.AddressClient, deviceGroup string, debounce time.Duration, autoPush bool) *PushService {
	return &PushService{
		store:       store,
		client:      client,
		deviceGroup: deviceGroup,
		debounce:    debounce,
		autoPush:    autoPush,
	}
}

// TriggerPush triggers a debounced push operation. Multiple triggers
// within the debounce period result in a single push.
func (s *PushService) TriggerPush() {
	if !s.autoPush {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Cancel existing timer
	if s.pushTimer != nil {
		s.pushTimer.Stop()
	}

	s.pushPending = true
	s.pushTimer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		s.pushPending = false
		s.mu.Unlock()

		ctx := context.Background()
		if _, err := s.ForcePush(ctx); err != nil {
			log.Printf("Auto-push failed: %v", err)
		}
	})
}

// Preview returns the artifact that would be pushed, without pushing.
func (s *PushService) Preview(ctx context.Context) (*export.Artifact, error) {
	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	return export.Build(customers), nil
}

// RenderArtifact renders the current artifact as YAML.
func (s *PushService) RenderArtifact(ctx context.Context) ([]byte, error) {
	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	return export.Render(customers)
}

// ForcePush renders the current records and pushes them immediately.
func (s *PushService) ForcePush(ctx context.Context) (*domain.PushResponse, error) {
	s.mu.Lock()
	// Cancel any pending debounced push
	if s.pushTimer != nil {
		s.pushTimer.Stop()
	}
	s.pushPending = false
	s.mu.Unlock()

	rendered, err := s.RenderArtifact(ctx)
	if err != nil {
		return nil, err
	}

	artifact, err := export.Parse(rendered)
	if err != nil {
		return nil, err
	}

	version, err := s.newVersion(ctx, string(rendered))
	if err != nil {
		return nil, err
	}

	return s.pushVersion(ctx, version, artifact), nil
}

// Redeploy pushes a previous version's rendered artifact as a new
// version.
func (s *PushService) Redeploy(ctx context.Context, versionID string) (*domain.PushResponse, error) {
	prior, err := s.store.GetPushVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}

	artifact, err := export.Parse([]byte(prior.RenderedArtifact))
	if err != nil {
		return nil, err
	}

	version, err := s.newVersion(ctx, prior.RenderedArtifact)
	if err != nil {
		return nil, err
	}

	return s.pushVersion(ctx, version, artifact), nil
}

// newVersion creates the next pending version record.
func (s *PushService) newVersion(ctx context.Context, rendered string) (*domain.PushVersion, error) {
	nextVersion := 1
	latest, err := s.store.GetLatestPushVersion(ctx)
	if err == nil {
		nextVersion = latest.VersionNumber + 1
	} else if err != domain.ErrNotFound {
		return nil, err
	}

	version := &domain.PushVersion{
		ID:               uuid.New().String(),
		VersionNumber:    nextVersion,
		RenderedArtifact: rendered,
		Status:           domain.PushStatusPending,
		CreatedAt:        time.Now(),
	}
	if err := s.store.CreatePushVersion(ctx, version); err != nil {
		return nil, err
	}
	return version, nil
}

// pushVersion runs the three stages against the device and records the
// outcome on the version. Stage failures are reported in the response,
// not returned as errors: the version record is the source of truth.
func (s *PushService) pushVersion(ctx context.Context, version *domain.PushVersion, artifact *export.Artifact) *domain.PushResponse {
	fail := func(stage string, err error) *domain.PushResponse {
		now := time.Now()
		version.Status = domain.PushStatusFailed
		version.Stage = stage
		version.Error = err.Error()
		version.PushedAt = &now
		if uerr := s.store.UpdatePushVersion(ctx, version); uerr != nil {
			log.Printf("Warning: failed to update version record: %v", uerr)
		}
		return &domain.PushResponse{
			VersionID:     version.ID,
			VersionNumber: version.VersionNumber,
			Status:        domain.PushStatusFailed,
			Stage:         stage,
			Error:         err.Error(),
		}
	}

	if s.client == nil {
		return fail(domain.StageEnsureAddresses, fmt.Errorf("no device client configured"))
	}

	objects := make([]panorama.AddressObject, 0, len(artifact.Customers))
	for _, entry := range artifact.Customers {
		objects = append(objects, panorama.AddressObject{
			Name:  entry.ObjectName,
			Value: fmt.Sprintf("%s/%d", entry.CustomerIPAddress, entry.IPSubnetMask),
			Tags:  append([]string(nil), entry.Tags...),
		})
	}

	if err := s.client.EnsureAddresses(ctx, s.deviceGroup, objects); err != nil {
		return fail(domain.StageEnsureAddresses, err)
	}

	commitJob, err := s.client.Commit(ctx)
	if err != nil {
		return fail(domain.StageCommit, err)
	}
	version.CommitJob = commitJob

	pushJob, err := s.client.Push(ctx, s.deviceGroup)
	if err != nil {
		return fail(domain.StagePush, err)
	}
	version.PushJob = pushJob

	now := time.Now()
	version.Status = domain.PushStatusSuccess
	version.PushedAt = &now
	if err := s.store.UpdatePushVersion(ctx, version); err != nil {
		log.Printf("Warning: failed to update version record: %v", err)
	}

	return &domain.PushResponse{
		VersionID:     version.ID,
		VersionNumber: version.VersionNumber,
		Status:        domain.PushStatusSuccess,
	}
}
