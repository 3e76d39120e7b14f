package config

// StubHost replaces host probes for the duration of a test.
func StubHost(t interface{ Cleanup(func()) }, cpus int, memoryBytes uint64) {
	prevCPU, prevMem := cpuCount, systemMemory
	cpuCount = func() int { return cpus }
	systemMemory = func() (uint64, error) { return memoryBytes, nil }
	t.Cleanup(func() {
		cpuCount, systemMemory = prevCPU, prevMem
	})
}
