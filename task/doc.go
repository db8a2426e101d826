// Package task executes the task lists of DirectTaskExecution activities.
//
// Each task names a Handler registered on an Executor. Tasks run in order;
// every handler receives the output of the previous task, and the output of
// the last task becomes the activity's output.
package task
