/*
Copyright 2026 jr42.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package autoenable

import "testing"

type fakeService struct {
	startCalls int
	stopCalls  int
	startErr   error
	stopErr    error
}

func (f *fakeService) Start() error { f.startCalls++; return f.startErr }
func (f *fakeService) Stop() error  { f.stopCalls++; return f.stopErr }

func TestEnterRunningStartsEnabledServices(t *testing.T) {
	b := New()
	srp := &fakeService{}
	b.Register("srp", srp)
	b.SetAutoEnable("srp", true)

	b.EnterRunning()
	if srp.startCalls != 1 {
		t.Fatalf("expected 1 Start call, got %d", srp.startCalls)
	}
}

func TestLeaveRunningStopsStartedServices(t *testing.T) {
	b := New()
	srp := &fakeService{}
	b.Register("srp", srp)
	b.SetAutoEnable("srp", true)
	b.EnterRunning()

	b.LeaveRunning()
	if srp.stopCalls != 1 {
		t.Fatalf("expected 1 Stop call, got %d", srp.stopCalls)
	}
}

func TestDisabledServiceNeverStarts(t *testing.T) {
	b := New()
	srp := &fakeService{}
	b.Register("srp", srp)

	b.EnterRunning()
	if srp.startCalls != 0 {
		t.Fatalf("expected auto-enable-off service to stay stopped, got %d starts", srp.startCalls)
	}
}

func TestTurningAutoEnableOffDoesNotStopAlreadyStartedService(t *testing.T) {
	b := New()
	srp := &fakeService{}
	b.Register("srp", srp)
	b.SetAutoEnable("srp", true)
	b.EnterRunning()

	b.SetAutoEnable("srp", false)
	if srp.stopCalls != 0 {
		t.Fatalf("expected turning auto-enable off to not stop an already-started service, got %d stops", srp.stopCalls)
	}

	// But a subsequent LeaveRunning still stops it, since it was started.
	b.LeaveRunning()
	if srp.stopCalls != 1 {
		t.Fatalf("expected LeaveRunning to stop the already-started service, got %d stops", srp.stopCalls)
	}
}

func TestSetAutoEnableOnWhileAlreadyRunningStartsImmediately(t *testing.T) {
	b := New()
	srp := &fakeService{}
	b.Register("srp", srp)
	b.EnterRunning() // running with nothing enabled yet

	b.SetAutoEnable("srp", true)
	if srp.startCalls != 1 {
		t.Fatalf("expected immediate Start when enabling while already running, got %d", srp.startCalls)
	}
}

func TestReenteringRunningDoesNotDoubleStart(t *testing.T) {
	b := New()
	srp := &fakeService{}
	b.Register("srp", srp)
	b.SetAutoEnable("srp", true)
	b.EnterRunning()
	b.EnterRunning()
	if srp.startCalls != 1 {
		t.Fatalf("expected exactly 1 Start call across repeated EnterRunning, got %d", srp.startCalls)
	}
}
