package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/atelierhq/easelflow/pkg/flow"
	"github.com/atelierhq/easelflow/pkg/flow/config"
	"github.com/atelierhq/easelflow/pkg/flow/project"
	"github.com/atelierhq/easelflow/pkg/flow/registry"
)

// server holds the shared backend plus one live session per open
// project. Sessions are created lazily on first touch and hydrated
// from the backend once.
type server struct {
	backend    project.Store
	sessions   *registry.Registry[string, *session]
	settings   config.Settings
	logger     *slog.Logger
	engineOpts []flow.EngineOption
}

// session is one project's live graph, engine, and persistence sync.
type session struct {
	srv       *server
	projectID string

	graph  *flow.Store
	engine *flow.Engine
	sync   *project.Sync

	once    sync.Once
	initErr error
}

func newServer(backend project.Store, settings config.Settings, logger *slog.Logger) (*server, error) {
	opts, err := engineOptions(settings, logger)
	if err != nil {
		return nil, err
	}
	return &server{
		backend:    backend,
		sessions:   registry.New[string, *session](),
		settings:   settings,
		logger:     logger,
		engineOpts: opts,
	}, nil
}

func (srv *server) session(projectID string) *session {
	return srv.sessions.GetOrCreate(projectID, func() *session {
		return &session{srv: srv, projectID: projectID}
	})
}

// init hydrates the session exactly once. A project id with no stored
// document starts as an empty graph; the first change persists it.
func (s *session) init(ctx context.Context) error {
	s.once.Do(func() {
		s.initErr = s.open(ctx)
	})
	return s.initErr
}

func (s *session) open(ctx context.Context) error {
	graph := flow.NewStore()
	opts := append([]flow.EngineOption{flow.WithProjectID(s.projectID)}, s.srv.engineOpts...)
	engine := flow.NewEngine(graph, opts...)
	ps := project.NewSync(graph, s.srv.backend, s.projectID, "Untitled",
		project.WithDebounce(s.srv.settings.SyncDebounce),
		project.WithLogger(s.srv.logger),
	)

	// The watch context outlives the request: debounced writes fire
	// long after the triggering request returned.
	if err := ps.Start(context.Background()); err != nil {
		return err
	}
	if err := ps.Hydrate(ctx); err != nil && !errors.Is(err, project.ErrNotFound) {
		ps.Abandon()
		return err
	}

	s.graph = graph
	s.engine = engine
	s.sync = ps
	return nil
}

// withSession resolves and hydrates the session named by the :id route
// parameter before running the handler.
func (srv *server) withSession(fn func(fiber.Ctx, *session) error) fiber.Handler {
	return func(c fiber.Ctx) error {
		sess := srv.session(c.Params("id"))
		if err := sess.init(c.Context()); err != nil {
			return httpError(c, err)
		}
		return fn(c, sess)
	}
}

// close flushes and stops every open session.
func (srv *server) close(ctx context.Context) {
	srv.sessions.Range(func(id string, sess *session) bool {
		if sess.sync == nil {
			return true
		}
		if err := sess.sync.Stop(ctx); err != nil {
			srv.logger.Warn("session flush failed",
				slog.String("project_id", id),
				slog.String("error", err.Error()))
		}
		return true
	})
}

func (srv *server) app() *fiber.App {
	app := fiber.New()

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/projects", func(c fiber.Ctx) error {
		infos, err := srv.backend.List(c.Context())
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(infos)
	})

	app.Post("/projects", func(c fiber.Ctx) error {
		var req struct {
			Name string `json:"name"`
		}
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		if req.Name == "" {
			req.Name = "Untitled"
		}
		id := uuid.NewString()
		doc := project.New(id, req.Name, flow.Snapshot{})
		if err := srv.backend.Save(c.Context(), doc); err != nil {
			return httpError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id, "name": req.Name})
	})

	app.Delete("/projects/:id", func(c fiber.Ctx) error {
		id := c.Params("id")
		if sess, ok := srv.sessions.Get(id); ok {
			if sess.sync != nil {
				sess.sync.Abandon()
			}
			srv.sessions.Delete(id)
		}
		if err := srv.backend.Delete(c.Context(), id); err != nil {
			return httpError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Get("/projects/:id/flow", srv.withSession(func(c fiber.Ctx, sess *session) error {
		return c.JSON(fiber.Map{
			"name":  sess.sync.Name(),
			"graph": sess.graph.Export(),
		})
	}))

	app.Put("/projects/:id/flow", srv.withSession(func(c fiber.Ctx, sess *session) error {
		var snap flow.Snapshot
		if err := c.Bind().JSON(&snap); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := sess.graph.Import(snap); err != nil {
			return httpError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}))

	app.Put("/projects/:id/name", srv.withSession(func(c fiber.Ctx, sess *session) error {
		var req struct {
			Name string `json:"name"`
		}
		if err := c.Bind().JSON(&req); err != nil || req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name required"})
		}
		sess.sync.SetName(req.Name)
		return c.SendStatus(fiber.StatusNoContent)
	}))

	app.Post("/projects/:id/nodes", srv.withSession(func(c fiber.Ctx, sess *session) error {
		var node flow.Node
		if err := c.Bind().JSON(&node); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		added, err := sess.graph.AddNode(node)
		if err != nil {
			return httpError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(added)
	}))

	app.Patch("/projects/:id/nodes/:nodeID", srv.withSession(func(c fiber.Ctx, sess *session) error {
		var patch flow.Patch
		if err := c.Bind().JSON(&patch); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		node, err := sess.graph.UpdateNodePayload(c.Params("nodeID"), patch)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(node)
	}))

	app.Post("/projects/:id/nodes/:nodeID/position", srv.withSession(func(c fiber.Ctx, sess *session) error {
		var pos flow.Position
		if err := c.Bind().JSON(&pos); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := sess.graph.SetPosition(c.Params("nodeID"), pos); err != nil {
			return httpError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}))

	app.Delete("/projects/:id/nodes/:nodeID", srv.withSession(func(c fiber.Ctx, sess *session) error {
		if err := sess.graph.RemoveNode(c.Params("nodeID")); err != nil {
			return httpError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}))

	app.Post("/projects/:id/edges", srv.withSession(func(c fiber.Ctx, sess *session) error {
		var edge flow.Edge
		if err := c.Bind().JSON(&edge); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		added, evicted, err := sess.graph.AddEdge(edge)
		if err != nil {
			return httpError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"edge":    added,
			"evicted": evicted,
		})
	}))

	app.Delete("/projects/:id/edges/:edgeID", srv.withSession(func(c fiber.Ctx, sess *session) error {
		if err := sess.graph.RemoveEdge(c.Params("edgeID")); err != nil {
			return httpError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}))

	app.Post("/projects/:id/nodes/:nodeID/run", srv.withSession(func(c fiber.Ctx, sess *session) error {
		nodeID := c.Params("nodeID")
		runErr := sess.engine.Run(c.Context(), nodeID)

		var re *flow.RunError
		var be *flow.BatchError
		if errors.As(runErr, &re) || errors.As(runErr, &be) {
			// The run completed and the node carries the failed status;
			// report it rather than a transport error.
			node, err := sess.graph.Node(nodeID)
			if err != nil {
				return httpError(c, err)
			}
			return c.JSON(fiber.Map{
				"status": node.Status,
				"error":  runErr.Error(),
				"node":   node,
			})
		}
		if runErr != nil {
			return httpError(c, runErr)
		}
		node, err := sess.graph.Node(nodeID)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(fiber.Map{"status": node.Status, "node": node})
	}))

	app.Post("/projects/:id/drag/begin", srv.withSession(func(c fiber.Ctx, sess *session) error {
		sess.sync.BeginDrag()
		return c.SendStatus(fiber.StatusNoContent)
	}))

	app.Post("/projects/:id/drag/end", srv.withSession(func(c fiber.Ctx, sess *session) error {
		sess.sync.EndDrag()
		return c.SendStatus(fiber.StatusNoContent)
	}))

	app.Post("/projects/:id/flush", srv.withSession(func(c fiber.Ctx, sess *session) error {
		if err := sess.sync.Flush(c.Context()); err != nil {
			return httpError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}))

	return app
}

// httpError maps domain errors onto HTTP status codes.
func httpError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, flow.ErrNodeNotFound),
		errors.Is(err, flow.ErrEdgeNotFound),
		errors.Is(err, project.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, flow.ErrDuplicateID),
		errors.Is(err, flow.ErrAlreadyRunning),
		errors.Is(err, project.ErrBusy):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, flow.ErrInvalidConnection),
		errors.Is(err, flow.ErrConnectionRefused),
		errors.Is(err, flow.ErrUnknownKind),
		errors.Is(err, flow.ErrNotRunnable):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
