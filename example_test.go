package taskloop_test

import (
	"context"
	"fmt"

	taskloop "github.com/Swind/go-task-loop"
)

// ExampleCreateTask demonstrates driving a task with only one import.
func ExampleCreateTask() {
	taskloop.InitGlobalSharedPool(1)
	defer taskloop.ShutdownGlobalSharedPool()

	ticks := make(chan int)
	n := 0
	task := taskloop.CreateTask(func(ctx context.Context) {
		n++
		if n <= 3 {
			ticks <- n
			return
		}
		// Enough iterations; park until joined.
		_ = taskloop.CurrentTask(ctx).Pause()
	}, taskloop.WithLock(&taskloop.RecMutex{}))

	if err := task.Start(); err != nil {
		panic(err)
	}
	for i := 0; i < 3; i++ {
		fmt.Println("tick", <-ticks)
	}
	if err := task.Join(); err != nil {
		panic(err)
	}
	fmt.Println("state:", task.State())

	// Output:
	// tick 1
	// tick 2
	// tick 3
	// state: stopped
}

// ExampleNewParallelizedRunner demonstrates fanning work out over a pool.
func ExampleNewParallelizedRunner() {
	runner, err := taskloop.NewParallelizedRunner[int](4, nil, false)
	if err != nil {
		panic(err)
	}
	defer runner.Close()

	squares := make([]int, 5)
	_ = runner.Run(func(i int) { squares[i] = i * i }, []int{0, 1, 2, 3, 4})
	fmt.Println(squares)

	// Output:
	// [0 1 4 9 16]
}
