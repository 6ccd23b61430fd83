package errors

import "errors"

// ================= 业务领域错误定义 =================
// 所有业务逻辑相关的错误统一在此定义，避免跨包重复定义

// ErrPageNotFound 页面不存在
var ErrPageNotFound = errors.New("page not found in database")

// ErrSiteNotFound 站点不存在
var ErrSiteNotFound = errors.New("site not found in database")

// ErrFileNotFound 文件不存在
var ErrFileNotFound = errors.New("file not found in database")

// ErrTargetNotFound Delivery Endpoint 解析 page/site 失败，对外映射为 404
var ErrTargetNotFound = errors.New("target not found")

// ErrUnauthorized 当前用户不是站点所有者
var ErrUnauthorized = errors.New("user is not the owner of this site")

// ErrInvalidLocation 注入位置只能是 head 或 body
var ErrInvalidLocation = errors.New("invalid location, expected head or body")

// ErrInvalidTargetKind 目标类型只能是 page 或 site
var ErrInvalidTargetKind = errors.New("invalid target type, expected page or site")

// ErrInvalidFileIDs 文件 ID 列表无法归一化
var ErrInvalidFileIDs = errors.New("invalid file id list")

// ErrInvalidLanguage 文件语言无法识别
var ErrInvalidLanguage = errors.New("invalid file language, expected markup, style or script")

// ErrInvalidPatch JSON Patch 无法解析或无法应用
var ErrInvalidPatch = errors.New("invalid json patch")

// ErrFileSiteMismatch 文件列表引用了其它站点的文件
var ErrFileSiteMismatch = errors.New("file belongs to another site")

// ErrInvalidFileName 文件名不能为空
var ErrInvalidFileName = errors.New("file name is required")

// ErrRoomClosing 房间正在关闭，客户端应稍后重连
var ErrRoomClosing = errors.New("room is closing, please retry")

// ErrMissingTargetID 请求没有带目标 ID
var ErrMissingTargetID = errors.New("missing target id")
