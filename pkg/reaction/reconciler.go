package reaction

import (
	"context"
	"errors"
	"log"

	"cbgateway/pkg/crowdbuilding"
	"cbgateway/pkg/models"
)

// ErrToggleInFlight means a toggle for this entity is still outstanding; no
// second network call is made.
var ErrToggleInFlight = errors.New("toggle already in flight for entity")

// Transport is the slice of the CrowdBuilding client the reconciler needs.
type Transport interface {
	ToggleLike(ctx context.Context, token string, kind models.EntityKind, id string) (*models.ToggleResult, error)
	Post(ctx context.Context, token, id string) (*models.Post, error)
	Comments(ctx context.Context, token, postID string) ([]models.Comment, error)
}

// Reconciler resolves like toggles against the server and records the result
// in the store. The server is the only source of truth: the new state comes
// from an explicit flag or like list in the response, or from a canonical
// re-fetch when the response carries neither. Count deltas and free-text
// messages are never consulted.
type Reconciler struct {
	api   Transport
	store *Store
}

func NewReconciler(api Transport, store *Store) *Reconciler {
	return &Reconciler{api: api, store: store}
}

func (r *Reconciler) Store() *Store { return r.store }

// Toggle flips the member's like on the entity. Unauthenticated callers are
// rejected before any network traffic. Toggles for the same (member, entity)
// pair are serialized; a re-entrant call returns ErrToggleInFlight. On
// failure the prior state is preserved and the store raises its transient
// error overlay.
func (r *Reconciler) Toggle(ctx context.Context, memberID, token string, ref models.EntityRef) (State, error) {
	if memberID == "" || token == "" {
		st, _ := r.store.Get(memberID, ref)
		return st, crowdbuilding.ErrAuthRequired
	}
	if !ref.Valid() {
		st, _ := r.store.Get(memberID, ref)
		return st, crowdbuilding.ErrNotFound
	}
	if !r.store.beginToggle(memberID, ref) {
		st, _ := r.store.Get(memberID, ref)
		return st, ErrToggleInFlight
	}

	res, err := r.api.ToggleLike(ctx, token, ref.Kind, ref.ID)
	if err != nil {
		log.Printf("[REACTION] toggle %s failed for member=%s: %v", ref.Key(), memberID, err)
		return r.store.fail(memberID, ref), err
	}

	liked, count, ok := resolve(res, memberID)
	if !ok {
		liked, count, err = r.refetch(ctx, token, memberID, ref)
		if err != nil {
			log.Printf("[REACTION] canonical re-fetch %s failed: %v", ref.Key(), err)
			return r.store.fail(memberID, ref), err
		}
	}

	return r.store.Apply(memberID, ref, liked, count), nil
}

// resolve extracts an explicit result from the toggle response. ok is false
// when the response has no usable signal and the caller must re-fetch.
func resolve(res *models.ToggleResult, memberID string) (liked bool, count int, ok bool) {
	if res == nil {
		return false, 0, false
	}
	ent := res.Data

	switch {
	case res.Liked != nil:
		liked = *res.Liked
	case ent != nil && ent.Liked != nil:
		liked = *ent.Liked
	case ent != nil && ent.Likes != nil:
		liked = models.LikedBy(ent.Likes, memberID)
	default:
		return false, 0, false
	}

	switch {
	case res.LikesCount != nil:
		count = *res.LikesCount
	case ent != nil && ent.LikesCount != nil:
		count = *ent.LikesCount
	case ent != nil && ent.Likes != nil:
		count = len(ent.Likes)
	default:
		// a liked flag without any count still needs the canonical record
		return false, 0, false
	}

	return liked, count, true
}

func (r *Reconciler) refetch(ctx context.Context, token, memberID string, ref models.EntityRef) (bool, int, error) {
	switch ref.Kind {
	case models.KindComment:
		comments, err := r.api.Comments(ctx, token, ref.PostID)
		if err != nil {
			return false, 0, err
		}
		for i := range comments {
			if comments[i].ID == ref.ID {
				return comments[i].IsLikedBy(memberID), comments[i].LikesCount, nil
			}
		}
		return false, 0, crowdbuilding.ErrNotFound
	default:
		post, err := r.api.Post(ctx, token, ref.ID)
		if err != nil {
			return false, 0, err
		}
		return post.IsLikedBy(memberID), post.LikesCount, nil
	}
}
