// Package patch 封装文本 diff/patch 能力：计算两段文本的补丁集、
// 将补丁集应用到文本并报告每个补丁是否成功，以及补丁集的文本序列化.
// 底层使用 diff-match-patch，补丁应用带模糊上下文匹配，重度编辑的文本
// 允许部分应用.
package patch

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// dmp 为无状态算法实例，可被并发使用.
var dmp = diffmatchpatch.New()

// Set 表示一组有序补丁.
type Set struct {
	patches []diffmatchpatch.Patch
}

// Diff 计算从 a 到 b 的补丁集.
func Diff(a, b string) Set {
	diffs := dmp.DiffMain(a, b, true)
	diffs = dmp.DiffCleanupEfficiency(diffs)

	return Set{patches: dmp.PatchMake(a, diffs)}
}

// Apply 将补丁集应用到 text，返回结果文本与每个补丁的应用结果.
// applied[i] 为 false 表示第 i 个补丁未能匹配上下文，结果为尽力而为的文本.
func Apply(s Set, text string) (string, []bool) {
	return dmp.PatchApply(s.patches, text)
}

// Empty 报告补丁集是否为空.
func (s Set) Empty() bool {
	return len(s.patches) == 0
}

// Len 返回补丁数量.
func (s Set) Len() int {
	return len(s.patches)
}

// Text 返回补丁集的文本序列化（unidiff 风格，URL 转义）.
func (s Set) Text() string {
	return dmp.PatchToText(s.patches)
}

// FromText 从文本序列化解析补丁集.
func FromText(text string) (Set, error) {
	patches, err := dmp.PatchFromText(text)
	if err != nil {
		return Set{}, fmt.Errorf("parse patch text: %w", err)
	}

	return Set{patches: patches}, nil
}
