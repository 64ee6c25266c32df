package service

import (
	"context"

	"lifecert/internal/application"
	"lifecert/internal/audit"
	"lifecert/internal/identity"
	domainerrors "lifecert/pkg/domain-errors"
)

// filterForActor maps an actor to the server-side filter for their view.
// Pensioners see only their own applications. Notaries see the shared review
// queue: every pending submission plus completed work, which is narrowed to
// their own completed work client-side by keepForActor. Admins see everything.
func filterForActor(actor identity.Actor) application.Filter {
	switch {
	case actor.IsPensioner():
		return application.Filter{RequesterID: actor.ID}
	case actor.IsNotary():
		return application.Filter{Statuses: []application.Status{
			application.StatusSubmitted,
			application.StatusAttested,
			application.StatusRejected,
		}}
	default:
		return application.Filter{}
	}
}

// keepForActor is the second half of the notary view rule: pending items are
// visible to every notary, completed items only to the notary who handled
// them. Other roles keep the server-side filter as-is.
func keepForActor(actor identity.Actor) func(*application.Application) bool {
	if !actor.IsNotary() {
		return func(*application.Application) bool { return true }
	}
	return func(app *application.Application) bool {
		return app.Status == application.StatusSubmitted || app.NotaryID == actor.ID
	}
}

// List returns a point-in-time snapshot of the actor's view, newest relevant
// activity first.
func (s *Service) List(ctx context.Context, actor identity.Actor) ([]*application.Application, error) {
	apps, err := s.store.List(ctx, filterForActor(actor))
	if err != nil {
		return nil, translateStoreErr(err, "list applications")
	}
	keep := keepForActor(actor)
	out := apps[:0]
	for _, app := range apps {
		if keep(app) {
			out = append(out, app)
		}
	}
	application.SortByRelevantDate(out)
	return out, nil
}

// WatchForActor opens a live subscription on the actor's view. Each snapshot
// is the complete, ordered result set; callers close the subscription when
// done.
func (s *Service) WatchForActor(ctx context.Context, actor identity.Actor) (*application.Subscription, error) {
	sub, err := s.store.Subscribe(ctx, filterForActor(actor))
	if err != nil {
		return nil, translateStoreErr(err, "subscribe to applications")
	}
	if !actor.IsNotary() {
		return sub, nil
	}
	return application.FilterSubscription(sub, keepForActor(actor)), nil
}

// Report returns the acting notary's completed attestation work, attested and
// rejected applications only, for export. The export itself is audited.
func (s *Service) Report(ctx context.Context, actor identity.Actor) ([]*application.Application, error) {
	if !actor.IsNotary() {
		return nil, domainerrors.New(domainerrors.CodeForbidden, "only notaries may export attestation reports")
	}
	apps, err := s.store.List(ctx, application.Filter{
		NotaryID: actor.ID,
		Statuses: []application.Status{application.StatusAttested, application.StatusRejected},
	})
	if err != nil {
		return nil, translateStoreErr(err, "build attestation report")
	}
	application.SortByRelevantDate(apps)
	s.audit.Record(ctx, actor.ID, audit.ActionExportData, "", "Exported attestation report")
	return apps, nil
}
