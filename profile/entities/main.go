// Profiling:
// go build ./profile/entities
// go tool pprof -http=":8000" -nodefraction=0.001 ./entities mem.pprof

package main

import (
	"github.com/pkg/profile"

	"github.com/nullterra/ecsdb"
)

type comp1 struct {
	V int64
	W int64
}

type comp2 struct {
	V int64
	W int64
}

func main() {
	count := 50
	iters := 10000
	entities := 1000
	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	run(count, iters, entities)
	p.Stop()
}

func run(rounds, iters, numEntities int) {
	for range rounds {
		w, err := ecs.NewBuilder().Build()
		if err != nil {
			panic(err)
		}
		q := ecs.With[comp2](ecs.With[comp1](ecs.NewQuery(w), ecs.Exclusive), ecs.Shared)
		cq, err := q.Compile()
		if err != nil {
			panic(err)
		}

		for range iters {
			for range numEntities {
				e := w.Spawn()
				_ = ecs.Insert(w, e, comp1{})
				_ = ecs.Insert(w, e, comp2{V: 1, W: 1})
			}
			view, err := cq.View(ecs.Runtime)
			if err != nil {
				panic(err)
			}
			var entities []ecs.EId
			for view.Next() {
				entities = append(entities, view.Entity())
				c1 := ecs.ViewGetMut[comp1](view)
				c2 := ecs.ViewGet[comp2](view)
				c1.V += c2.V
				c1.W += c2.W
			}
			view.Release()
			for _, e := range entities {
				_ = w.Despawn(e)
			}
		}
	}
}
