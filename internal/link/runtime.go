package link

// runtime registers module factories and evaluates them on first load. It is
// idempotent so a common artifact and entry artifacts share one registry.
const runtime = `var __pagepack = (function (root) {
  if (root.__pagepack) return root.__pagepack;
  var factories = {}, dependencies = {}, cache = {};
  function load(id) {
    if (cache[id]) return cache[id].exports;
    if (!factories[id]) throw new Error("pagepack: module not found: " + id);
    var module = cache[id] = { id: id, exports: {} };
    var deps = dependencies[id];
    factories[id].call(module.exports, module, module.exports, function (request) {
      if (!Object.prototype.hasOwnProperty.call(deps, request)) {
        throw new Error("pagepack: cannot find module '" + request + "' from " + id);
      }
      return load(deps[request]);
    });
    return module.exports;
  }
  return root.__pagepack = {
    define: function (id, deps, factory) {
      if (!factories[id]) {
        factories[id] = factory;
        dependencies[id] = deps;
      }
    },
    load: load
  };
})(typeof self !== "undefined" ? self : typeof global !== "undefined" ? global : this);
`
