// Package loader 生成嵌入宿主平台自定义代码的引导脚本
// 脚本只做一件事：渲染时请求 Delivery Endpoint，把返回的 bundle 注入页面
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"codeinject-go-server/domain/entity"
)

// MaxScriptBytes 平台对内联脚本的长度上限
const MaxScriptBytes = 2000

// MarkerClass 注入的 html 容器带此 class，重复执行时据此跳过
const MarkerClass = "ci-injected"

var (
	ErrScriptTooLarge = errors.New("generated loader exceeds platform inline script limit")
	ErrEmptyTarget    = errors.New("loader target id is empty")
)

// Params 生成参数
type Params struct {
	TargetID     string
	Kind         entity.TargetKind
	Location     entity.Location
	EndpointBase string
}

type payload struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Location string `json:"location"`
}

// 单个 IIFE，失败只 console.warn，绝不抛出
// 占位符依次为：endpoint、payload、marker class
const scriptTemplate = `(function(){var u=%s,p=%s,m=%s,d=document,h=d.head;` +
	`fetch(u,{method:"POST",headers:{"Content-Type":"application/json"},body:JSON.stringify(p)})` +
	`.then(function(r){if(!r.ok)throw new Error("HTTP "+r.status);return r.json()})` +
	`.then(function(b){var k=p.type+":"+p.id+":"+p.location;` +
	`if(b.css){var s=d.createElement("style");s.textContent=b.css;h.appendChild(s)}` +
	`if(b.html&&!d.querySelector("."+m+"[data-ci='"+k+"']")){var c=d.createElement("div");c.className=m;c.setAttribute("data-ci",k);c.innerHTML=b.html;(p.location=="head"?h:d.body||h).appendChild(c)}` +
	`if(b.js){var j=d.createElement("script");j.text=b.js;(d.body||h).appendChild(j)}})` +
	`.catch(function(e){console.warn("[code-inject]",e)})})();`

// Generate 生成 loader 源码
// 所有动态值都经过 JSON 编码，< > & 会被转义，不会提前闭合 <script>
func Generate(p Params) (string, error) {
	if strings.TrimSpace(p.TargetID) == "" {
		return "", ErrEmptyTarget
	}
	if p.Kind != entity.TargetPage && p.Kind != entity.TargetSite {
		return "", fmt.Errorf("loader: unsupported target kind %q", p.Kind)
	}
	if p.Location != entity.LocationHead && p.Location != entity.LocationBody {
		return "", fmt.Errorf("loader: unsupported location %q", p.Location)
	}

	endpoint, err := json.Marshal(Endpoint(p.EndpointBase))
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(payload{
		ID:       p.TargetID,
		Type:     string(p.Kind),
		Location: string(p.Location),
	})
	if err != nil {
		return "", err
	}
	marker, _ := json.Marshal(MarkerClass)

	src := fmt.Sprintf(scriptTemplate, endpoint, body, marker)
	if len(src) > MaxScriptBytes {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrScriptTooLarge, len(src), MaxScriptBytes)
	}
	return src, nil
}

// Endpoint Delivery Endpoint 的完整地址
func Endpoint(base string) string {
	return strings.TrimRight(base, "/") + "/bundle"
}
