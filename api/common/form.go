package common

// FormField 表单字段描述
type FormField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Value    string `json:"value,omitempty"`
}

// Form 以 JSON 描述的表单，替代服务端模板
type Form struct {
	Action  string      `json:"action"`
	Method  string      `json:"method"`
	Enctype string      `json:"enctype,omitempty"`
	Fields  []FormField `json:"fields"`
}
