package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"db-relay/internal/driver"
	"db-relay/internal/engine"
	"db-relay/internal/errs"
	"db-relay/internal/schema"
	"db-relay/internal/scriptstore"
)

// session is an open connection and the engine running on it. In dry-run
// mode the engine writes to a recorder and the script is saved on close.
type session struct {
	db     driver.Database
	rec    *scriptstore.Recorder
	engine *engine.Engine
}

func openSession(ctx context.Context, name string, opts engine.Options) (*session, error) {
	return open(ctx, name, opts, dryRun)
}

// openSource opens a connection that is only read from, never recorded.
func openSource(ctx context.Context, name string) (*session, error) {
	return open(ctx, name, engine.Options{}, false)
}

func open(ctx context.Context, name string, opts engine.Options, record bool) (*session, error) {
	cfg, err := settings.Connection(name)
	if err != nil {
		return nil, err
	}
	db, err := driver.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	s := &session{db: db}
	var conn driver.Conn = db
	if record {
		s.rec = scriptstore.NewRecorder(db)
		conn = s.rec
	}
	s.engine = engine.New(conn, log, opts)
	log.Infof("Connected to %s (%s)", cfg.Name, db.Dialect().Name())
	return s, nil
}

func (s *session) name() string { return s.db.Name() }

func (s *session) catalog(ctx context.Context) (*schema.Catalog, error) {
	log.Info("Analyzing schema...")
	return driver.Reflect(ctx, s.db, log)
}

// created makes relations exist for the rest of a dry run.
func (s *session) created(rels ...*schema.Relation) {
	if s.rec == nil {
		return
	}
	for _, r := range rels {
		s.rec.Assume(r.Name())
	}
}

// close saves the script of a dry run and closes the connection.
func (s *session) close(ctx context.Context) error {
	defer s.db.Close()
	if s.rec == nil {
		return nil
	}
	script := s.rec.Script()
	target := settings.Script.Out
	if target == "" || target == "-" {
		_, err := os.Stdout.Write(script)
		return err
	}
	if err := scriptstore.Save(ctx, target, script, settings.Script.Config); err != nil {
		return err
	}
	log.Infof("Script %s written to %s (%d statements)", s.rec.ID(), target, len(s.rec.Statements()))
	return nil
}

// closeSession closes s and keeps the first error.
func closeSession(ctx context.Context, s *session, err *error) {
	if cerr := s.close(context.WithoutCancel(ctx)); cerr != nil && *err == nil {
		*err = cerr
	}
}

// selectRelations picks the named relations of cat, or every relation when
// names is empty. Unknown names fail unless missingOK is set.
func selectRelations(cat *schema.Catalog, names []string, missingOK bool) ([]*schema.Relation, error) {
	if len(names) == 0 {
		return cat.Relations(), nil
	}
	var out []*schema.Relation
	for _, n := range names {
		r, ok := cat.Relation(strings.TrimSpace(n))
		if !ok {
			if missingOK {
				log.Warnf("The relation (%s) does not exist in %s", n, cat.Connection())
				continue
			}
			return nil, errs.Newf(errs.ErrKindNotFound, "The relation (%s) does not exist in %s", n, cat.Connection())
		}
		out = append(out, r)
	}
	return out, nil
}

func tablesOnly(rels []*schema.Relation) []*schema.Relation {
	out := make([]*schema.Relation, 0, len(rels))
	for _, r := range rels {
		if r.Kind() == schema.KindTable {
			out = append(out, r)
			continue
		}
		log.Warnf("The relation (%s) is a %s and is skipped", r, r.Kind())
	}
	return out
}

func printResult(res fmt.Stringer) {
	fmt.Fprintln(os.Stderr, res.String())
}
