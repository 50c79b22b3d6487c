package audit

// ShimJS runs before any page script. It keeps window.dataLayer wrapped,
// even if the page reassigns it, so every pushed item is recorded into
// window.__ga4Audit and then forwarded unchanged. gtag() pushes its
// Arguments object, which is recorded as an array.
const ShimJS = `(() => {
  if (window.__ga4Audit) return;
  const audit = window.__ga4Audit = { pushes: [], events: [] };

  const isArgs = (v) => Object.prototype.toString.call(v) === '[object Arguments]';

  const clone = (v, depth) => {
    if (v === null || v === undefined) return null;
    const t = typeof v;
    if (t === 'string' || t === 'number' || t === 'boolean') return v;
    if (t === 'function' || t === 'symbol' || t === 'bigint') return null;
    if (depth > 6) return null;
    if (v instanceof Date) return v.toISOString();
    if (typeof Node !== 'undefined' && v instanceof Node) return '<' + (v.nodeName || 'node').toLowerCase() + '>';
    if (Array.isArray(v) || isArgs(v)) return Array.from(v, (x) => clone(x, depth + 1));
    const out = {};
    for (const k of Object.keys(v)) out[k] = clone(v[k], depth + 1);
    return out;
  };

  const nameOf = (item) => {
    if (Array.isArray(item)) {
      if (item[0] === 'event' && typeof item[1] === 'string') return item[1];
      if (item[0] === 'consent' && item[1] === 'default') return 'consent_default';
      return null;
    }
    if (item && typeof item === 'object' && typeof item.event === 'string') return item.event;
    return null;
  };

  const record = (items) => {
    for (const raw of items) {
      const item = isArgs(raw) ? Array.from(raw) : raw;
      audit.pushes.push(clone(item, 0));
      const name = nameOf(item);
      if (name) audit.events.push(name);
    }
  };

  const wrap = (dl) => {
    if (!Array.isArray(dl) || dl.__ga4AuditWrapped) return dl;
    record(dl);
    const push = dl.push;
    dl.push = function() {
      record(arguments);
      return push.apply(this, arguments);
    };
    Object.defineProperty(dl, '__ga4AuditWrapped', { value: true });
    return dl;
  };

  let current = wrap([]);
  Object.defineProperty(window, 'dataLayer', {
    configurable: true,
    enumerable: true,
    get() { return current; },
    set(v) { current = wrap(v); }
  });
})();`

const eventsJS = `() => (window.__ga4Audit ? window.__ga4Audit.events.slice() : [])`

const scrollStepJS = `(fraction) => {
  window.scrollBy(0, Math.max(1, window.innerHeight * fraction));
  window.dispatchEvent(new Event('scroll'));
  return window.scrollY;
}`

const scrollToEndJS = `() => {
  const h = Math.max(document.body ? document.body.scrollHeight : 0, document.documentElement.scrollHeight);
  window.scrollTo(0, h);
  window.dispatchEvent(new Event('scroll'));
  return window.scrollY;
}`

const clickCopyJS = `() => {
  const el = document.querySelector('button[class*="copyButton"], button[aria-label*="copy" i]');
  if (!el) return false;
  el.dispatchEvent(new MouseEvent('click', { bubbles: true, cancelable: true }));
  return true;
}`

const clickTOCJS = `() => {
  const el = document.querySelector('nav.table-of-contents a, a.table-of-contents__link');
  if (!el) return false;
  el.dispatchEvent(new MouseEvent('click', { bubbles: true, cancelable: true }));
  return true;
}`

const collectJS = `() => {
  const a = window.__ga4Audit || { pushes: [], events: [] };
  return {
    pushes: a.pushes,
    events: a.events,
    gtm: document.querySelectorAll("script[src*='googletagmanager.com/gtm.js']").length,
    gtag: document.querySelectorAll("script[src*='googletagmanager.com/gtag/js']").length
  };
}`
