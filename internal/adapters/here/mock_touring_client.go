package here

import (
	"context"
	"fmt"
	"sync"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/ports"
)

// MockStep is one scripted status answer of a mock job.
type MockStep struct {
	Status ports.JobStatus
	Err    error
}

// MockTouringClient is an in-memory TouringClient driven by a script.
// Each submission creates a job whose polls return Script(problem) in order;
// the last step repeats once the script is exhausted.
type MockTouringClient struct {
	Script    func(submission int, problem domain.Problem) []MockStep
	Solution  func(problem domain.Problem) *domain.Solution
	SubmitErr error

	mu        sync.Mutex
	submitted []domain.Problem
	jobs      map[ports.JobHandle]*mockJob
	polls     int
}

type mockJob struct {
	problem domain.Problem
	steps   []MockStep
	next    int
}

func (m *MockTouringClient) Submit(ctx context.Context, problem domain.Problem) (ports.JobHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SubmitErr != nil {
		return "", m.SubmitErr
	}

	if m.jobs == nil {
		m.jobs = make(map[ports.JobHandle]*mockJob)
	}

	n := len(m.submitted)
	m.submitted = append(m.submitted, problem)

	var steps []MockStep
	if m.Script != nil {
		steps = m.Script(n, problem)
	}
	if len(steps) == 0 {
		res := ports.ResourceHandle(fmt.Sprintf("mock://solution/%d", n))
		steps = []MockStep{{Status: ports.JobStatus{Status: ports.JobStatusSuccess, Resource: &res}}}
	}

	h := ports.JobHandle(fmt.Sprintf("mock://status/%d", n))
	m.jobs[h] = &mockJob{problem: problem, steps: steps}
	return h, nil
}

func (m *MockTouringClient) PollStatus(ctx context.Context, handle ports.JobHandle) (ports.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[handle]
	if !ok {
		return ports.JobStatus{}, fmt.Errorf("mock: unknown job %q", handle)
	}
	m.polls++

	step := job.steps[min(job.next, len(job.steps)-1)]
	job.next++
	return step.Status, step.Err
}

func (m *MockTouringClient) FetchSolution(ctx context.Context, resource ports.ResourceHandle) (*domain.Solution, error) {
	m.mu.Lock()
	var problem domain.Problem
	var n int
	if _, err := fmt.Sscanf(string(resource), "mock://solution/%d", &n); err == nil && n < len(m.submitted) {
		problem = m.submitted[n]
	}
	m.mu.Unlock()

	if m.Solution != nil {
		return m.Solution(problem), nil
	}
	return SolutionForAllJobs(problem), nil
}

// Submitted returns the problems submitted so far.
func (m *MockTouringClient) Submitted() []domain.Problem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Problem, len(m.submitted))
	copy(out, m.submitted)
	return out
}

func (m *MockTouringClient) Polls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}

// SolutionForAllJobs builds a solution that serves every task of the problem
// with the first vehicle type, one stop per task.
func SolutionForAllJobs(p domain.Problem) *domain.Solution {
	sol := &domain.Solution{}
	if !p.HasFleetTypes() {
		return sol
	}

	vt := p.Fleet.Types[0]
	tour := domain.Tour{VehicleID: vt.VehicleID(), TypeID: vt.ID}
	for _, j := range p.Plan.Jobs {
		for _, t := range j.Pickups {
			activity := domain.Activity{JobID: j.ID, JobTag: t.Tag, Type: "pickup"}
			tour.Stops = append(tour.Stops, domain.TourStop{Activities: []domain.Activity{activity}})
		}
		for _, t := range j.Deliveries {
			activity := domain.Activity{JobID: j.ID, JobTag: t.Tag, Type: "delivery"}
			tour.Stops = append(tour.Stops, domain.TourStop{Activities: []domain.Activity{activity}})
		}
	}
	sol.Tours = append(sol.Tours, tour)
	return sol
}
