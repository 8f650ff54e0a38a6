package preview

import "strings"

// instrumentation is injected into every rendered document. It reports
// clicks to the parent window and outlines hovered and selected elements.
const instrumentation = `<script data-storefront-instrumentation>
(function () {
  var selected = null;
  function describe(el) {
    var r = el.getBoundingClientRect();
    var text = (el.textContent || "").trim();
    return {
      tagName: el.tagName.toLowerCase(),
      classList: el.className && el.className.baseVal === undefined ? el.className : "",
      textContent: text.length > 100 ? text.slice(0, 100) : text,
      fullText: text,
      position: { x: r.left, y: r.top, width: r.width, height: r.height },
      value: el.value !== undefined ? String(el.value) : text
    };
  }
  document.addEventListener("click", function (e) {
    var el = e.target;
    if (!el || el === document.body) return;
    e.preventDefault();
    e.stopPropagation();
    if (selected && selected !== el) selected.style.outline = "";
    selected = el;
    el.style.outline = "2px solid #3b82f6";
    var payload = describe(el);
    window.parent.postMessage({ type: "ELEMENT_SELECTED", payload: payload }, "*");
    window.parent.postMessage({ type: "ELEMENT_CLICKED_LIVE", payload: payload }, "*");
  }, true);
  document.addEventListener("mouseover", function (e) {
    if (e.target !== selected) e.target.style.outline = "1px dashed #93c5fd";
  });
  document.addEventListener("mouseout", function (e) {
    if (e.target !== selected) e.target.style.outline = "";
  });
})();
</script>`

// Instrument splices the instrumentation script right before the last
// closing body tag, or appends it when the document has none.
func Instrument(html string) string {
	i := strings.LastIndex(strings.ToLower(html), "</body>")
	if i < 0 {
		return html + instrumentation
	}

	return html[:i] + instrumentation + html[i:]
}

// Instrumented reports whether html already carries the script.
func Instrumented(html string) bool {
	return strings.Contains(html, "data-storefront-instrumentation")
}
