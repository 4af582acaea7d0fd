package models

// NoticeLevel is the severity of a transient notification.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeWarn
	NoticeError
)

// Surface is the set of view regions the controller drives.
//
// Methods are called while the controller holds its lock and must not call
// back into the controller.
type Surface interface {
	ShowPreview(p Preview)
	ClearPreview()
	ShowProgress(job ActiveJob, state RenderState)
	ShowResult(job ActiveJob, state RenderState)
	ShowCancelled(job ActiveJob)
	ShowError(job ActiveJob, err error)
	OfferNewJob()
	Notify(level NoticeLevel, msg string)
	Reset()
}
