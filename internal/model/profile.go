package model

// Profile 用户资料投影（供会话列表展示）
type Profile struct {
	UserId      string `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	NameColor   string `json:"nameColor,omitempty"`
}

// UnknownProfile 资料解析失败时的占位资料
func UnknownProfile(userId string) Profile {
	return Profile{
		UserId:      userId,
		Username:    "unknown",
		DisplayName: "Unknown User",
	}
}
