package errcode

// 错误码约定：
// - 0：无错误
// - 4xxx：输入类错误，重试同一输入不会成功
// - 5xxx：系统错误（需要中断流程）
const (
	OK              = 0
	InvalidImage    = 4001
	ResourceMissing = 4004
	SystemError     = 5000
	IsolationFailed = 5001
	EncodingFailed  = 5002
)
