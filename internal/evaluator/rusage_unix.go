//go:build linux || darwin

package evaluator

import (
	"runtime"

	"golang.org/x/sys/unix"
)

func init() {

	preProcessTasks = func(e *Evaluator) {
		var ru unix.Rusage
		unix.Getrusage(unix.RUSAGE_SELF, &ru) // ignore errors
		sys := &e.statSummary.SysStats

		// set everything to negative values: we will simply += in postprocessing
		sys.CpuUserNsecs = -unix.TimevalToNsec(ru.Utime)
		sys.CpuSysNsecs = -unix.TimevalToNsec(ru.Stime)
		sys.MinFlt = -ru.Minflt
		sys.MajFlt = -ru.Majflt
		sys.BioRead = -ru.Inblock
		sys.BioWrite = -ru.Oublock
		sys.Sigs = -ru.Nsignals
		sys.CtxSwYield = -ru.Nvcsw
		sys.CtxSwForced = -ru.Nivcsw
	}

	postProcessTasks = func(e *Evaluator) {
		var ru unix.Rusage
		unix.Getrusage(unix.RUSAGE_SELF, &ru) // ignore errors

		// maxrss is in KiB everywhere but on mac
		if runtime.GOOS != "darwin" {
			ru.Maxrss *= 1024
		}

		sys := &e.statSummary.SysStats

		sys.MaxRssBytes = ru.Maxrss
		sys.CpuUserNsecs += unix.TimevalToNsec(ru.Utime)
		sys.CpuSysNsecs += unix.TimevalToNsec(ru.Stime)
		sys.MinFlt += ru.Minflt
		sys.MajFlt += ru.Majflt
		sys.BioRead += ru.Inblock
		sys.BioWrite += ru.Oublock
		sys.Sigs += ru.Nsignals
		sys.CtxSwYield += ru.Nvcsw
		sys.CtxSwForced += ru.Nivcsw
	}
}
