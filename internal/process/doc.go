// Package process supervises the long-running encoder subprocess.
//
// A Supervisor owns at most one live Handle:
//   - Start launches the encoder in its own process group at lowered
//     priority and waits out a startup grace window
//   - a process that exits inside the window is a startup failure and
//     no handle is kept
//   - a surviving process gets an output monitor and a CPU watchdog,
//     both scoped to the handle and joined by Stop
//   - Stop sets the shutdown flag before signalling the process, so the
//     monitor can tell an intentional stop from a crash
//
// Supervisors are single-use. The shutdown flag is never reset; a restart
// builds a new Supervisor.
//
// Example:
//
//	sup := process.NewSupervisor(process.Options{Reporter: reporter})
//	h, err := sup.Start(ctx, params)
//	if err != nil {
//	    return err
//	}
//	defer sup.Stop()
//	<-h.Exited()
package process
