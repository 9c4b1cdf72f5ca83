// Package jobcontrol provides job control for an interactive shell: running
// pipelines as Linux process groups, tracking their run state and handing the
// controlling terminal between the shell and its jobs.
//
// A Job is one pipeline. Each of its Processes runs in the Job's process
// group, led by the first process forked.
//
// A Table holds the Jobs that have not yet completed and been reported. It is
// owned by the prompt loop and passed explicitly to the Spawner, which starts
// Jobs, and the Reaper, which applies status changes reported by wait4(2).
// The Terminal decides which process group owns the terminal.
//
// All of these run on the shell's single interpreter goroutine. Status
// changes are polled for at defined points, never applied from a signal
// handler.
package jobcontrol
