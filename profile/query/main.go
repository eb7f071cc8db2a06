// Profiling:
// go build ./profile/query
// go tool pprof -http=":8000" -nodefraction=0.001 ./query mem.prof

package main

import (
	"os"
	"runtime"
	"runtime/pprof"

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

type comp3 struct {
	V int64
	W int64
}

type comp4 struct {
	V int64
	W int64
}

type comp5 struct {
	V int64
	W int64
}

type comp6 struct {
	V int64
	W int64
}

func main() {
	f, _ := os.Create("cpu.prof")
	_ = pprof.StartCPUProfile(f)
	defer pprof.StopCPUProfile()

	count := 50
	iters := 10000
	entities := 100000
	run(count, iters, entities)

	memFile, _ := os.Create("mem.prof")
	defer memFile.Close()
	runtime.GC()
	_ = pprof.WriteHeapProfile(memFile)
}

func run(rounds, iters, numEntities int) {
	for range rounds {
		w, err := ecs.NewBuilder().Build()
		if err != nil {
			panic(err)
		}
		for range numEntities {
			e := w.Spawn()
			_ = ecs.Insert(w, e, comp1{})
			_ = ecs.Insert(w, e, comp2{V: 1, W: 1})
			_ = ecs.Insert(w, e, comp3{})
			_ = ecs.Insert(w, e, comp4{})
			_ = ecs.Insert(w, e, comp5{})
			_ = ecs.Insert(w, e, comp6{})
		}

		q := ecs.NewQuery(w)
		q = ecs.With[comp1](q, ecs.Exclusive)
		q = ecs.With[comp2](q, ecs.Shared)
		q = ecs.With[comp3](q, ecs.Shared)
		q = ecs.With[comp4](q, ecs.Shared)
		q = ecs.With[comp5](q, ecs.Shared)
		q = ecs.With[comp6](q, ecs.Shared)
		cq, err := q.Compile()
		if err != nil {
			panic(err)
		}

		for range iters {
			view, err := cq.View(ecs.Static)
			if err != nil {
				panic(err)
			}
			for view.Next() {
				c1 := ecs.ViewGetMut[comp1](view)
				c2 := ecs.ViewGet[comp2](view)
				c1.V += c2.V
				c1.W += c2.W
			}
			view.Release()
		}
	}
}
