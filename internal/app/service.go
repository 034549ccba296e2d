package app

import (
	"errors"
	"io"

	"novacontent/internal/generation"
	"novacontent/internal/manifest"
	"novacontent/internal/publish"
	"novacontent/internal/queue"
	"novacontent/internal/quota"
	"novacontent/internal/render"
	"novacontent/internal/storage"
	"novacontent/internal/store"
	"novacontent/internal/voicecache"
	"novacontent/pkg/config"
)

type Service struct {
	cfg       *config.Config
	store     *store.Store
	ledger    *quota.Ledger
	generator *generation.Client
	cache     *voicecache.Cache
	assembler *manifest.Assembler
	queue     *queue.Queue
	renderer  *render.Renderer
	artifacts storage.ArtifactStore
	publisher publish.Publisher
	closers   []io.Closer
}

type ServiceOptions struct {
	Config    *config.Config
	Store     *store.Store
	Ledger    *quota.Ledger
	Generator *generation.Client
	Cache     *voicecache.Cache
	Assembler *manifest.Assembler
	Queue     *queue.Queue
	Renderer  *render.Renderer
	Artifacts storage.ArtifactStore
	Publisher publish.Publisher
	Closers   []io.Closer
}

func NewService(opts ServiceOptions) *Service {
	return &Service{
		cfg:       opts.Config,
		store:     opts.Store,
		ledger:    opts.Ledger,
		generator: opts.Generator,
		cache:     opts.Cache,
		assembler: opts.Assembler,
		queue:     opts.Queue,
		renderer:  opts.Renderer,
		artifacts: opts.Artifacts,
		publisher: opts.Publisher,
		closers:   opts.Closers,
	}
}

func (s *Service) Config() *config.Config           { return s.cfg }
func (s *Service) Store() *store.Store              { return s.store }
func (s *Service) Ledger() *quota.Ledger            { return s.ledger }
func (s *Service) Generator() *generation.Client    { return s.generator }
func (s *Service) Cache() *voicecache.Cache         { return s.cache }
func (s *Service) Assembler() *manifest.Assembler   { return s.assembler }
func (s *Service) Queue() *queue.Queue              { return s.queue }
func (s *Service) Renderer() *render.Renderer       { return s.renderer }
func (s *Service) Artifacts() storage.ArtifactStore { return s.artifacts }
func (s *Service) Publisher() publish.Publisher     { return s.publisher }

// Close releases external clients first and the database last.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}
