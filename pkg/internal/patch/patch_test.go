package patch_test

import (
	"strings"
	"testing"

	"github.com/yeisme/histvault/pkg/internal/patch"
)

// TestDiffApplyRoundTrip 测试补丁计算与应用的往返.
func TestDiffApplyRoundTrip(t *testing.T) {
	a := "Hello"
	b := "Hello World"

	set := patch.Diff(a, b)
	if set.Empty() {
		t.Fatal("expected non-empty patch set for differing texts")
	}

	got, applied := patch.Apply(set, a)
	if got != b {
		t.Errorf("Apply = %q, want %q", got, b)
	}

	for i, ok := range applied {
		if !ok {
			t.Errorf("patch %d failed to apply", i)
		}
	}
}

// TestDiffIdentical 相同文本的补丁集应为空.
func TestDiffIdentical(t *testing.T) {
	set := patch.Diff("same", "same")
	if !set.Empty() {
		t.Errorf("expected empty patch set, got %d patches", set.Len())
	}
}

// TestTextSerializationRoundTrip 测试补丁集文本序列化往返.
func TestTextSerializationRoundTrip(t *testing.T) {
	a := "line one\nline two\nline three\n"
	b := "line one\nline 2\nline three\nline four\n"

	set := patch.Diff(a, b)

	parsed, err := patch.FromText(set.Text())
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}

	got, _ := patch.Apply(parsed, a)
	if got != b {
		t.Errorf("Apply(parsed) = %q, want %q", got, b)
	}
}

// TestFromTextInvalid 非法补丁文本应返回错误.
func TestFromTextInvalid(t *testing.T) {
	if _, err := patch.FromText("not a patch"); err == nil {
		t.Error("expected error for malformed patch text")
	}
}

// TestPartialApply 上下文完全不匹配时补丁应报告失败而不是丢弃文本.
func TestPartialApply(t *testing.T) {
	a := strings.Repeat("aaaa\n", 20)
	b := strings.Repeat("aaaa\n", 19) + "bbbb\n"

	set := patch.Diff(a, b)

	unrelated := strings.Repeat("zzzz\n", 20)

	got, applied := patch.Apply(set, unrelated)
	if got == "" {
		t.Error("expected best-effort text, got empty string")
	}

	allOK := true

	for _, ok := range applied {
		if !ok {
			allOK = false
		}
	}

	if allOK {
		t.Error("expected at least one patch to fail on unrelated text")
	}
}
