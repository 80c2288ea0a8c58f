package realtime

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Decoder turns a full document from a change stream into an Event with
// its routing fields (ID, WorkspaceID, InviteeEmail, Doc) filled in.
type Decoder func(raw bson.Raw) (Event, error)

// DecodeAs builds a Decoder for documents of type T.
func DecodeAs[T any](route func(doc T, e *Event)) Decoder {
	return func(raw bson.Raw) (Event, error) {
		var doc T
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return Event{}, err
		}
		var e Event
		route(doc, &e)
		e.Doc = doc
		return e, nil
	}
}

// ChangeStreamFeeder tails MongoDB change streams and publishes every
// committed change. It lets several server instances share one event
// stream; deletes are routed using the pre-image, so collections should
// have changeStreamPreAndPostImages enabled.
type ChangeStreamFeeder struct {
	db       *mongo.Database
	pub      Publisher
	log      *zap.Logger
	decoders map[string]Decoder
	backoff  time.Duration
}

// NewChangeStreamFeeder returns a feeder publishing into pub.
func NewChangeStreamFeeder(db *mongo.Database, pub Publisher, log *zap.Logger) *ChangeStreamFeeder {
	return &ChangeStreamFeeder{
		db:       db,
		pub:      pub,
		log:      log,
		decoders: make(map[string]Decoder),
		backoff:  2 * time.Second,
	}
}

// Register adds a collection to watch.
func (f *ChangeStreamFeeder) Register(collection string, d Decoder) {
	f.decoders[collection] = d
}

type changeEvent struct {
	OperationType string `bson:"operationType"`
	NS            struct {
		Coll string `bson:"coll"`
	} `bson:"ns"`
	DocumentKey              bson.Raw `bson:"documentKey"`
	FullDocument             bson.Raw `bson:"fullDocument"`
	FullDocumentBeforeChange bson.Raw `bson:"fullDocumentBeforeChange"`
}

// Run watches until ctx is done, reconnecting after stream errors and
// resuming from the last seen token.
func (f *ChangeStreamFeeder) Run(ctx context.Context) error {
	colls := make(bson.A, 0, len(f.decoders))
	for c := range f.decoders {
		colls = append(colls, c)
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"ns.coll":       bson.M{"$in": colls},
			"operationType": bson.M{"$in": bson.A{"insert", "update", "replace", "delete"}},
		}}},
	}

	var resume bson.Raw
	for {
		opts := options.ChangeStream().
			SetFullDocument(options.UpdateLookup).
			SetFullDocumentBeforeChange(options.WhenAvailable)
		if resume != nil {
			opts.SetResumeAfter(resume)
		}

		cs, err := f.db.Watch(ctx, pipeline, opts)
		if err == nil {
			f.log.Info("change stream opened", zap.Int("collections", len(colls)))
			for cs.Next(ctx) {
				resume = cs.ResumeToken()
				var ev changeEvent
				if err := cs.Decode(&ev); err != nil {
					f.log.Warn("change stream decode failed", zap.Error(err))
					continue
				}
				f.dispatch(ev)
			}
			err = cs.Err()
			_ = cs.Close(context.WithoutCancel(ctx))
		}

		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			f.log.Warn("change stream interrupted; reconnecting",
				zap.Error(err), zap.Duration("backoff", f.backoff))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.backoff):
		}
	}
}

func (f *ChangeStreamFeeder) dispatch(ev changeEvent) {
	dec, ok := f.decoders[ev.NS.Coll]
	if !ok {
		return
	}
	var typ ChangeType
	raw := ev.FullDocument
	switch ev.OperationType {
	case "insert":
		typ = Added
	case "update", "replace":
		typ = Modified
	case "delete":
		typ = Removed
		raw = ev.FullDocumentBeforeChange
	default:
		return
	}
	if len(raw) == 0 {
		f.log.Debug("change without document; skipped",
			zap.String("collection", ev.NS.Coll),
			zap.String("op", ev.OperationType))
		return
	}
	e, err := dec(raw)
	if err != nil {
		f.log.Warn("change document decode failed",
			zap.String("collection", ev.NS.Coll), zap.Error(err))
		return
	}
	e.Collection = ev.NS.Coll
	e.Type = typ
	e.At = time.Now().UTC()
	f.pub.Publish(e)
}
