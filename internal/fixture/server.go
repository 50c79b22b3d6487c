// Package fixture serves a small documentation site that carries the
// bootstrap snippet and a tracking runtime, for end-to-end audits. Query
// switches break the event contract on purpose: ?consent=off serves a page
// whose tag setup never pushes a consent default, ?duplicate_tags=1 adds a
// second tag manager script.
package fixture

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	"ga4skill/internal/bootstrap"
	"ga4skill/internal/contract"
	"ga4skill/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

//go:embed assets/runtime.js
var runtimeJS string

//go:embed assets/page.html.tmpl
var pageHTML string

//go:embed assets/index.html.tmpl
var indexHTML string

var (
	pageTmpl  = template.Must(template.New("page").Parse(pageHTML))
	indexTmpl = template.Must(template.New("index").Parse(indexHTML))
)

// Server is the fixture site.
type Server struct {
	Router   *chi.Mux
	opts     bootstrap.Options
	bookName string
	snippet  template.HTML
	chapters map[string]Chapter
	ordered  []Chapter
	log      *zap.Logger
}

// New builds the fixture site for opts. An empty chapters slice serves
// DefaultChapters.
func New(opts bootstrap.Options, bookName string, chapters []Chapter) (*Server, error) {
	snippet, err := bootstrap.RenderSnippet(opts, bootstrap.SnippetPlugin)
	if err != nil {
		return nil, err
	}
	if len(chapters) == 0 {
		chapters = DefaultChapters()
	}
	if bookName == "" {
		bookName = opts.BookID
	}

	s := &Server{
		opts:     opts,
		bookName: bookName,
		snippet:  template.HTML(snippet),
		chapters: make(map[string]Chapter, len(chapters)),
		ordered:  chapters,
		log:      logging.Get(logging.CategoryFixture),
	}
	for _, c := range chapters {
		s.chapters[c.Slug] = c
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/docs", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/docs/"+chapters[0].Slug, http.StatusFound)
	})
	r.Get("/docs/*", s.handleChapter)

	s.Router = r
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully. ready, if non-nil, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s, ReadHeaderTimeout: 10 * time.Second}

	s.log.Info("fixture site listening", zap.String("addr", ln.Addr().String()))
	if ready != nil {
		ready(ln.Addr())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		<-errCh
		return nil
	}
}

type pageData struct {
	BookName     string
	Opts         bootstrap.Options
	Version      string
	Snippet      template.HTML
	Runtime      template.JS
	ConsentOff   bool
	ExtraScripts []string
	Chapter      Chapter
	Chapters     []Chapter
}

func (s *Server) data() pageData {
	return pageData{
		BookName: s.bookName,
		Opts:     s.opts,
		Version:  contract.SchemaVersion,
		Snippet:  s.snippet,
		Runtime:  template.JS(runtimeJS),
		Chapters: s.ordered,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, indexTmpl, s.data())
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	slug := strings.Trim(chi.URLParam(r, "*"), "/")
	c, ok := s.chapters[slug]
	if !ok {
		http.NotFound(w, r)
		return
	}

	d := s.data()
	d.Chapter = c
	q := r.URL.Query()
	d.ConsentOff = q.Get("consent") == "off"
	if q.Get("duplicate_tags") == "1" {
		d.ExtraScripts = append(d.ExtraScripts, bootstrap.GTMScriptURL(s.opts.GTMContainerID))
	}
	s.render(w, pageTmpl, d)
}

func (s *Server) render(w http.ResponseWriter, t *template.Template, d pageData) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, d); err != nil {
		s.log.Error("render page", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}
