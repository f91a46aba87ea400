package export

// htmlHead is the page shell up to the opening of the embedded data
// array. Arguments: title, styles, heading, message count, session
// type, export time, message count.
const htmlHead = `<!DOCTYPE html>
<html lang="zh-CN">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>%s - 聊天记录</title>
    <style>%s</style>
  </head>
  <body>
    <div class="page">
      <div class="header">
        <h1 class="title">%s</h1>
        <div class="meta">
          <span>%d 条消息</span>
          <span>%s</span>
          <span>%s</span>
        </div>
        <div class="controls">
          <input id="searchInput" type="search" placeholder="搜索消息..." />
          <input id="timeInput" type="datetime-local" />
          <button id="jumpBtn" type="button">跳转</button>
          <div class="stats">
            <span id="resultCount">共 %d 条</span>
          </div>
        </div>
      </div>

      <div id="scrollContainer" class="scroll-container"></div>

    </div>

    <div class="image-preview" id="imagePreview">
      <img id="imagePreviewTarget" alt="预览" />
    </div>

    <script>
      window.WXPORT_DATA = [
`

// htmlFoot closes the data array and carries the viewer script:
// incremental rendering, search, time jump, and image preview.
const htmlFoot = `];
    </script>

    <script>
      class ChunkedRenderer {
        constructor(container, data, renderItem) {
          this.container = container;
          this.data = data;
          this.renderItem = renderItem;
          this.batchSize = 100;
          this.rendered = 0;
          this.loading = false;

          this.list = document.createElement('div');
          this.list.className = 'message-list';
          this.container.appendChild(this.list);

          this.sentinel = document.createElement('div');
          this.sentinel.className = 'load-sentinel';
          this.container.appendChild(this.sentinel);

          this.renderBatch();

          this.observer = new IntersectionObserver((entries) => {
            if (entries[0].isIntersecting && !this.loading) {
              this.renderBatch();
            }
          }, { root: this.container, rootMargin: '600px' });
          this.observer.observe(this.sentinel);
        }

        renderBatch() {
          if (this.rendered >= this.data.length) return;
          this.loading = true;
          const end = Math.min(this.rendered + this.batchSize, this.data.length);
          const fragment = document.createDocumentFragment();
          for (let i = this.rendered; i < end; i++) {
            const wrapper = document.createElement('div');
            wrapper.innerHTML = this.renderItem(this.data[i], i);
            if (wrapper.firstElementChild) fragment.appendChild(wrapper.firstElementChild);
          }
          this.list.appendChild(fragment);
          this.rendered = end;
          this.loading = false;
        }

        setData(newData) {
          this.data = newData;
          this.rendered = 0;
          this.list.innerHTML = '';
          this.container.scrollTop = 0;
          if (this.data.length === 0) {
            this.list.innerHTML = '<div class="empty">暂无消息</div>';
            return;
          }
          this.renderBatch();
        }

        scrollToTime(timestamp) {
          const idx = this.data.findIndex(item => item.t >= timestamp);
          if (idx === -1) return;
          while (this.rendered <= idx) {
            this.renderBatch();
          }
          const el = this.list.children[idx];
          if (el) {
            el.scrollIntoView({ behavior: 'smooth', block: 'center' });
            el.classList.add('highlight');
            setTimeout(() => el.classList.remove('highlight'), 2500);
          }
        }
      }

      const searchInput = document.getElementById('searchInput');
      const timeInput = document.getElementById('timeInput');
      const jumpBtn = document.getElementById('jumpBtn');
      const resultCount = document.getElementById('resultCount');
      const imagePreview = document.getElementById('imagePreview');
      const imagePreviewTarget = document.getElementById('imagePreviewTarget');
      const container = document.getElementById('scrollContainer');
      let imageZoom = 1;

      let allData = window.WXPORT_DATA || [];
      let currentList = allData;

      const renderItem = (item, index) => {
        const side = item.s === 1 ? 'sent' : 'received';
        return '<div class="message ' + side + '" data-index="' + item.i + '">' +
          '<div class="message-row">' +
          '<div class="avatar">' + item.a + '</div>' +
          '<div class="bubble">' + item.b + '</div>' +
          '</div>' +
          '</div>';
      };

      const renderer = new ChunkedRenderer(container, currentList, renderItem);

      const updateCount = () => {
        resultCount.textContent = '共 ' + currentList.length + ' 条';
      };

      let searchTimeout;
      searchInput.addEventListener('input', () => {
        clearTimeout(searchTimeout);
        searchTimeout = setTimeout(() => {
          const keyword = searchInput.value.trim().toLowerCase();
          if (!keyword) {
            currentList = allData;
          } else {
            currentList = allData.filter(item => {
              return item.b.toLowerCase().includes(keyword);
            });
          }
          renderer.setData(currentList);
          updateCount();
        }, 300);
      });

      jumpBtn.addEventListener('click', () => {
        const value = timeInput.value;
        if (!value) return;
        const target = Math.floor(new Date(value).getTime() / 1000);
        renderer.scrollToTime(target);
      });

      container.addEventListener('click', (e) => {
        const target = e.target;
        if (target.classList.contains('previewable')) {
          const full = target.getAttribute('data-full');
          if (!full) return;
          imagePreviewTarget.src = full;
          imageZoom = 1;
          imagePreviewTarget.style.transform = 'scale(1)';
          imagePreview.classList.add('active');
        }
      });

      imagePreviewTarget.addEventListener('click', (event) => {
        event.stopPropagation();
      });

      imagePreviewTarget.addEventListener('dblclick', (event) => {
        event.stopPropagation();
        imageZoom = 1;
        imagePreviewTarget.style.transform = 'scale(1)';
      });

      imagePreviewTarget.addEventListener('wheel', (event) => {
        event.preventDefault();
        const delta = event.deltaY > 0 ? -0.1 : 0.1;
        imageZoom = Math.min(3, Math.max(0.5, imageZoom + delta));
        imagePreviewTarget.style.transform = 'scale(' + imageZoom + ')';
      }, { passive: false });

      imagePreview.addEventListener('click', () => {
        imagePreview.classList.remove('active');
        imagePreviewTarget.src = '';
        imageZoom = 1;
        imagePreviewTarget.style.transform = 'scale(1)';
      });

      updateCount();
    </script>
  </body>
</html>
`

const htmlStyles = `:root {
  color-scheme: light;
  --bg: #f6f7fb;
  --card: #ffffff;
  --text: #1f2a37;
  --muted: #6b7280;
  --accent: #4f46e5;
  --sent: #dbeafe;
  --received: #ffffff;
  --border: #e5e7eb;
  --radius: 16px;
}
* { box-sizing: border-box; }
body {
  margin: 0;
  font-family: "PingFang SC", "Microsoft YaHei", system-ui, -apple-system, sans-serif;
  background: var(--bg);
  color: var(--text);
}
.page {
  max-width: 1080px;
  margin: 0 auto;
  padding: 8px 20px;
  height: 100vh;
  display: flex;
  flex-direction: column;
}
.header {
  background: var(--card);
  border-radius: 12px;
  box-shadow: 0 2px 8px rgba(15, 23, 42, 0.06);
  padding: 12px 20px;
  flex-shrink: 0;
}
.title { font-size: 16px; font-weight: 600; margin: 0; display: inline; }
.meta { color: var(--muted); font-size: 13px; display: inline; margin-left: 12px; }
.meta span { margin-right: 10px; }
.controls { display: flex; align-items: center; gap: 8px; margin-top: 8px; flex-wrap: wrap; }
.controls input, .controls button {
  border-radius: 8px;
  border: 1px solid var(--border);
  padding: 6px 10px;
  font-size: 13px;
  font-family: inherit;
}
.controls input[type="search"] { width: 200px; }
.controls input[type="datetime-local"] { width: 200px; }
.controls button { background: var(--accent); color: #fff; border: none; cursor: pointer; padding: 6px 14px; }
.stats { font-size: 13px; color: var(--muted); margin-left: auto; }
.message-list { display: flex; flex-direction: column; gap: 12px; padding: 4px 0; }
.message { display: flex; flex-direction: column; gap: 8px; }
.message-time { font-size: 12px; color: var(--muted); margin-bottom: 6px; }
.message-row { display: flex; gap: 12px; align-items: flex-end; }
.message.sent .message-row { flex-direction: row-reverse; }
.avatar {
  width: 40px;
  height: 40px;
  border-radius: 12px;
  background: #eef2ff;
  display: flex;
  align-items: center;
  justify-content: center;
  overflow: hidden;
  flex-shrink: 0;
  color: #475569;
  font-weight: 600;
}
.avatar img { width: 100%; height: 100%; object-fit: cover; }
.bubble {
  max-width: min(70%, 720px);
  background: var(--received);
  border-radius: 18px;
  padding: 12px 14px;
  border: 1px solid var(--border);
  box-shadow: 0 8px 20px rgba(15, 23, 42, 0.06);
}
.message.sent .bubble { background: var(--sent); border-color: transparent; }
.sender-name { font-size: 12px; color: var(--muted); margin-bottom: 6px; }
.message-content { display: flex; flex-direction: column; gap: 8px; font-size: 14px; line-height: 1.6; }
.message-text { word-break: break-word; }
.message-media { border-radius: 14px; max-width: 100%; }
.previewable { cursor: zoom-in; }
.message-media.image, .message-media.emoji {
  max-height: 260px;
  object-fit: contain;
  background: #f1f5f9;
  padding: 6px;
}
.message-media.emoji { max-height: 160px; width: auto; }
.message-media.video { max-height: 360px; background: #111827; }
.message-media.audio { width: 260px; }
.image-preview {
  position: fixed;
  inset: 0;
  background: rgba(15, 23, 42, 0.7);
  display: flex;
  align-items: center;
  justify-content: center;
  opacity: 0;
  pointer-events: none;
  transition: opacity 0.2s ease;
  z-index: 999;
}
.image-preview.active { opacity: 1; pointer-events: auto; }
.image-preview img {
  max-width: min(90vw, 1200px);
  max-height: 90vh;
  border-radius: 18px;
  background: #0f172a;
  transition: transform 0.1s ease;
  cursor: zoom-out;
}
.highlight { outline: 2px solid var(--accent); outline-offset: 4px; border-radius: 18px; }
.empty { text-align: center; color: var(--muted); padding: 40px; }
.scroll-container {
  flex: 1;
  min-height: 0;
  overflow-y: auto;
  border: 1px solid var(--border);
  border-radius: var(--radius);
  background: var(--bg);
  margin-top: 8px;
  margin-bottom: 8px;
  padding: 12px;
}
.scroll-container::-webkit-scrollbar { width: 6px; }
.scroll-container::-webkit-scrollbar-thumb { background: #c1c1c1; border-radius: 3px; }
.load-sentinel { height: 1px; }
`
