package history

import "errors"

var (
	// ErrHistoryCorrupt 表示有版本的文件找不到检查点，违反首版本不变量.
	// 致命错误：只应记录并上报，不应重试.
	ErrHistoryCorrupt = errors.New("history corrupt: no checkpoint found for file with versions")

	// ErrNotFound 文件或版本不存在. 返回给调用方作为"无历史"状态，不是崩溃.
	ErrNotFound = errors.New("not found")

	// ErrPathConflict 路径已被另一个活跃文件占用.
	ErrPathConflict = errors.New("path already tracked by an active file")

	// ErrNotDiff 对检查点载荷请求补丁集.
	ErrNotDiff = errors.New("payload is not a diff")
)
