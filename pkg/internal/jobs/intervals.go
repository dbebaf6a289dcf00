package jobs

import "time"

// 配置对照周期.足够频繁，热加载后的间隔变更最多迟到一分钟生效.
const configWatchInterval = time.Minute
