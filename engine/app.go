package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// App is a wrapper around the process manager and http router/server concepts defined by this pkg.
// It represents a set of "modules": types that can run workers, handle http routes, or observe lifecycle hooks.
// Just load up modules with .Add() and then run the thing with .Run().
type App struct {
	ProcMgr
	Router    *Router
	Lifecycle *Lifecycle
}

func NewApp(httpAddr string, router *Router) *App {
	a := &App{Router: router, Lifecycle: &Lifecycle{}}
	a.ProcMgr.Add(router.Serve(httpAddr))
	return a
}

func (a *App) Add(mod any) {
	var attached []string

	type routableModule interface {
		AttachRoutes(*Router)
	}
	if m, ok := mod.(routableModule); ok {
		m.AttachRoutes(a.Router)
		attached = append(attached, "routes")
	}

	type workableModule interface {
		AttachWorkers(*ProcMgr)
	}
	if m, ok := mod.(workableModule); ok {
		m.AttachWorkers(&a.ProcMgr)
		attached = append(attached, "workers")
	}

	type hookableModule interface {
		AttachHooks(*Lifecycle)
	}
	if m, ok := mod.(hookableModule); ok {
		m.AttachHooks(a.Lifecycle)
		attached = append(attached, "hooks")
	}

	if len(attached) == 0 {
		panic(fmt.Sprintf("module %T doesn't attach anything to the app", mod))
	}
	slog.Debug("added module", "module", fmt.Sprintf("%T", mod), "attached", strings.Join(attached, ","))
}

type Proc func(context.Context) error

// ProcMgr is like a fancy implementation of sync.WaitGroup.
type ProcMgr struct {
	procs []Proc
}

func (p *ProcMgr) Add(proc Proc) { p.procs = append(p.procs, proc) }

func (p *ProcMgr) Run(ctx context.Context) {
	slog.Info("starting procs", "count", len(p.procs))
	var wg sync.WaitGroup
	for _, proc := range p.procs {
		wg.Add(1)
		go func(proc Proc) {
			defer wg.Done()
			err := proc(ctx)
			if err == nil && ctx.Err() == nil {
				panic("a proc returned unexpectedly!")
			}
			if err != nil && ctx.Err() == nil {
				panic(fmt.Sprintf("proc returned an error: %s", err))
			}
		}(proc)
	}
	wg.Wait()
}
