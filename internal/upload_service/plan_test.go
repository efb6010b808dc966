package upload_service

import (
	"errors"
	"testing"
)

const mib = int64(1 << 20)

func TestPlan(t *testing.T) {
	tests := []struct {
		name        string
		size        int64
		blockSize   int64
		wantLengths []int64
	}{
		{name: "200 MiB in 64 MiB blocks", size: 200 * mib, blockSize: 64 * mib, wantLengths: []int64{64 * mib, 64 * mib, 64 * mib, 8 * mib}},
		{name: "exact multiple", size: 128 * mib, blockSize: 64 * mib, wantLengths: []int64{64 * mib, 64 * mib}},
		{name: "one byte over", size: 64*mib + 1, blockSize: 64 * mib, wantLengths: []int64{64 * mib, 1}},
		{name: "smaller than a block", size: 10, blockSize: 64 * mib, wantLengths: []int64{10}},
		{name: "empty file still has one chunk", size: 0, blockSize: 64 * mib, wantLengths: []int64{0}},
		{name: "default block size", size: 65 * mib, blockSize: 0, wantLengths: []int64{64 * mib, mib}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Plan("/tmp/src", tt.size, tt.blockSize, "/dest", "f.bin")
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if plan.BlockCount != len(tt.wantLengths) || len(plan.Tasks) != len(tt.wantLengths) {
				t.Fatalf("Plan() produced %d tasks, want %d", len(plan.Tasks), len(tt.wantLengths))
			}

			var next, total int64
			for i, task := range plan.Tasks {
				if task.Index != i {
					t.Errorf("task %d has index %d", i, task.Index)
				}
				if task.Offset != next {
					t.Errorf("task %d offset = %d, want %d", i, task.Offset, next)
				}
				if task.Length != tt.wantLengths[i] {
					t.Errorf("task %d length = %d, want %d", i, task.Length, tt.wantLengths[i])
				}
				if task.State != ChunkPending {
					t.Errorf("task %d state = %v, want pending", i, task.State)
				}
				next = task.Offset + task.Length
				total += task.Length
			}
			if total != tt.size {
				t.Errorf("task lengths sum to %d, want %d", total, tt.size)
			}
		})
	}
}

func TestPlan_Invalid(t *testing.T) {
	if _, err := Plan("/tmp/src", -1, 0, "/d", "f"); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("negative size error = %v", err)
	}
	if _, err := Plan("/tmp/src", 1, 0, "/d", "a/b"); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("nested name error = %v", err)
	}
}

func TestPartNames(t *testing.T) {
	plan, err := Plan("/tmp/src", 200*mib, 64*mib, "/dest/", "f.bin")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	want := []string{"/dest/f.bin_p_00000", "/dest/f.bin_p_00001", "/dest/f.bin_p_00002", "/dest/f.bin_p_00003"}
	got := plan.PartPaths()
	if len(got) != len(want) {
		t.Fatalf("PartPaths() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PartPaths()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if plan.RemotePath() != "/dest/f.bin" {
		t.Errorf("RemotePath() = %q", plan.RemotePath())
	}
	if PartName("x", 12345) != "x_p_12345" {
		t.Errorf("PartName() = %q", PartName("x", 12345))
	}
	if plan.SingleShot() {
		t.Error("200 MiB plan should not be single shot")
	}
}
